package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/reading-server/internal/auth"
	"github.com/listenupapp/reading-server/internal/clock"
	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/logger"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Database.DataPath)
	if err != nil {
		return nil, err
	}

	cfg.Auth.AccessTokenKey = key

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)
	clk := do.MustInvoke[clock.Clock](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.AccessTokenDuration, clk)
}
