// Package di provides dependency injection configuration for the reading server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/reading-server/internal/auth"
	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/di/providers"
	"github.com/listenupapp/reading-server/internal/logger"
	"github.com/listenupapp/reading-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments used to load configuration.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(args))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideKeyedLocker)
	do.Provide(injector, providers.ProvideThresholds)
	do.Provide(injector, providers.ProvideProgressService)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideHistoryService)
	do.Provide(injector, providers.ProvideCatalogService)

	// Workers
	do.Provide(injector, providers.ProvideProgressLimiter)
	do.Provide(injector, providers.ProvideIdleSessionSweepJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the background workers and
// the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[clock.Clock](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.ProgressService](injector)
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.HistoryService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)

	// Workers
	_ = do.MustInvoke[*providers.ProgressLimiterHandle](injector)
	_ = do.MustInvoke[*providers.IdleSessionSweepJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
