// Package providers contains dependency injection providers for the reading server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/logger"
)

// ProvideConfig returns a provider that loads configuration from args.
func ProvideConfig(args []string) func(do.Injector) (*config.Config, error) {
	return func(do.Injector) (*config.Config, error) {
		return config.LoadConfig(args)
	}
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting reading server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Database.DataPath,
	)

	return log, nil
}
