package api

import (
	domainerrors "github.com/listenupapp/reading-server/internal/errors"
)

// allowProgressPush applies the per-user budget for progress pushes.
// A nil limiter disables limiting.
func (s *Server) allowProgressPush(userID string) error {
	if s.progressLimiter == nil || s.progressLimiter.Allow(userID) {
		return nil
	}
	s.logger.Warn("rate limit exceeded", "user_id", userID, "operation", "updateProgress")
	return fromDomain(domainerrors.RateLimited("too many progress updates, slow down"))
}
