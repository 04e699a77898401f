package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/reading-server/internal/api"
	"github.com/listenupapp/reading-server/internal/auth"
	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/logger"
	"github.com/listenupapp/reading-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer builds the API handler and starts serving in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	limiter := do.MustInvoke[*ProgressLimiterHandle](i)

	services := &api.Services{
		Progress: do.MustInvoke[*service.ProgressService](i),
		Sessions: do.MustInvoke[*service.SessionService](i),
		History:  do.MustInvoke[*service.HistoryService](i),
		Catalog:  do.MustInvoke[*service.CatalogService](i),
	}

	handler := api.NewServer(
		storeHandle.Store,
		services,
		tokens,
		sseHandle.Manager,
		limiter.KeyedRateLimiter,
		cfg.Server.AllowedOrigins,
		log.Logger,
	)

	// The event stream pushes its write deadline forward on every send.
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
