package service

import (
	"time"

	"github.com/listenupapp/reading-server/internal/accounting"
)

// Thresholds are the reading-activity windows. They are independent and
// tuned separately.
type Thresholds struct {
	ConflictSkew    time.Duration
	IdleDiscard     time.Duration
	SessionCoalesce time.Duration
	InterimCap      time.Duration
}

// DefaultThresholds returns the production values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConflictSkew:    5 * time.Second,
		IdleDiscard:     2 * time.Hour,
		SessionCoalesce: time.Hour,
		InterimCap:      2 * time.Hour,
	}
}

func (t Thresholds) accounting() accounting.Thresholds {
	return accounting.Thresholds{IdleDiscard: t.IdleDiscard, InterimCap: t.InterimCap}
}
