package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/logger"
	"github.com/listenupapp/reading-server/internal/service"
)

// ProvideKeyedLocker provides the per (user, book) lock shared by every
// service that mutates reading state.
func ProvideKeyedLocker(do.Injector) (*service.KeyedLocker, error) {
	return service.NewKeyedLocker(), nil
}

// ProvideThresholds maps tracking configuration onto service thresholds.
func ProvideThresholds(i do.Injector) (service.Thresholds, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return service.Thresholds{
		ConflictSkew:    cfg.Tracking.ConflictSkew,
		IdleDiscard:     cfg.Tracking.IdleDiscard,
		SessionCoalesce: cfg.Tracking.SessionCoalesce,
		InterimCap:      cfg.Tracking.InterimCap,
	}, nil
}

// ProvideProgressService provides the progress reconciliation service.
func ProvideProgressService(i do.Injector) (*service.ProgressService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	locks := do.MustInvoke[*service.KeyedLocker](i)
	clk := do.MustInvoke[clock.Clock](i)
	thresholds := do.MustInvoke[service.Thresholds](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProgressService(storeHandle.Store, locks, clk, thresholds, sseHandle.Manager, log.Logger), nil
}

// ProvideSessionService provides the reading session service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	locks := do.MustInvoke[*service.KeyedLocker](i)
	clk := do.MustInvoke[clock.Clock](i)
	thresholds := do.MustInvoke[service.Thresholds](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, locks, clk, thresholds, sseHandle.Manager, log.Logger), nil
}

// ProvideHistoryService provides the reading history service.
func ProvideHistoryService(i do.Injector) (*service.HistoryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	locks := do.MustInvoke[*service.KeyedLocker](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewHistoryService(storeHandle.Store, locks, clk, sseHandle.Manager, log.Logger), nil
}

// ProvideCatalogService provides the user and book catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, clk, log.Logger), nil
}
