package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/listenupapp/reading-server/internal/auth"
	domainerrors "github.com/listenupapp/reading-server/internal/errors"
	"github.com/listenupapp/reading-server/internal/logger"
)

// authenticateRequest verifies the bearer token from an Authorization
// header and returns the user it was issued to.
func (s *Server) authenticateRequest(_ context.Context, authorization string) (string, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return "", fromDomain(domainerrors.Unauthorized("authentication required"))
	}

	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		s.logger.Debug("rejected access token", "error", err)
		return "", fromDomain(domainerrors.Unauthorized("invalid or expired token"))
	}
	return claims.UserID, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// userFromRequest adapts token verification for plain net/http handlers.
// The token may also come from the access_token query parameter, since
// EventSource cannot set headers.
func userFromRequest(tokens *auth.TokenService, fallback *slog.Logger) func(*http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			return "", false
		}
		claims, err := tokens.VerifyAccessToken(token)
		if err != nil {
			logger.FromContext(r.Context(), fallback).Debug("rejected access token", "error", err)
			return "", false
		}
		return claims.UserID, true
	}
}
