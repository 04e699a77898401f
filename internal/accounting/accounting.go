// Package accounting decides how reading time is attributed to sessions.
//
// Everything here is pure: given the stored history, the open session and
// the current time, it returns the new state plus the session writes the
// caller must perform. Identifiers and persistence stay with the caller.
package accounting

import (
	"time"

	"github.com/listenupapp/reading-server/internal/domain"
)

// Thresholds holds the windows that drive session accounting.
type Thresholds struct {
	// IdleDiscard is the gap after which the open session is abandoned
	// with no credited time and a fresh one is started.
	IdleDiscard time.Duration
	// InterimCap bounds Duration while a session is still open.
	InterimCap time.Duration
}

// DefaultThresholds are the production values.
var DefaultThresholds = Thresholds{
	IdleDiscard: 2 * time.Hour,
	InterimCap:  2 * time.Hour,
}

// State is what the store currently holds for a (user, book) pair.
// History is nil when no history exists; Open is nil when no session is open.
type State struct {
	History *domain.ReadingHistory
	Open    *domain.ReadingSession
}

// Push is a progress report from a client.
type Push struct {
	UserID   string
	BookID   string
	Progress float64
}

// Kind identifies a session write.
type Kind int

// Session writes produced by Account.
const (
	// Open inserts a new open session. Session.ID and Session.HistoryID are
	// left empty for the caller to fill.
	Open Kind = iota + 1
	// Extend updates the open session's interim duration and progress_after.
	Extend
	// Touch updates only progress_after on the open session.
	Touch
	// Discard closes the open session with zero duration.
	Discard
)

func (k Kind) String() string {
	switch k {
	case Open:
		return "open"
	case Extend:
		return "extend"
	case Touch:
		return "touch"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

// Effect is one session write, carrying the full row to persist.
type Effect struct {
	Kind    Kind
	Session domain.ReadingSession
}

// Result is the outcome of Account.
type Result struct {
	// History is the history row to persist. When CreateHistory is set the
	// caller must assign History.ID and insert it.
	History       domain.ReadingHistory
	CreateHistory bool
	Effects       []Effect
	// Elapsed is the gap since LastActivity, zero on first access.
	Elapsed time.Duration
}

// Account applies one progress push to the stored state.
//
// The high-water mark and last_read_at always advance. Session handling
// depends on the time since the previous read:
//
//	first access          open a session (or reuse one already open)
//
// Otherwise elapsed is measured from LastActivity:
//
//	elapsed > IdleDiscard discard the open session, open a fresh one
//	1s <= elapsed         extend the open session (cumulative duration)
//	elapsed < 1s          keep exactly one open session, refresh progress_after
//
// TotalReadingTime is never changed here; it is recomputed when a session ends.
func Account(prev State, push Push, now time.Time, th Thresholds) Result {
	var res Result

	if prev.History == nil {
		res.CreateHistory = true
		res.History = domain.ReadingHistory{
			UserID:    push.UserID,
			BookID:    push.BookID,
			CreatedAt: now,
		}
	} else {
		res.History = *prev.History
	}

	actual := max(res.History.TotalProgress, push.Progress)
	neverRead := res.History.LastReadAt == nil
	lastActivity := LastActivity(prev.History, prev.Open)

	res.History.TotalProgress = actual
	res.History.LastReadAt = &now
	res.History.UpdatedAt = now

	if neverRead {
		if prev.Open != nil {
			res.Effects = append(res.Effects, touch(*prev.Open, actual, now))
		} else {
			res.Effects = append(res.Effects, open(push, actual, now))
		}
		return res
	}

	res.Elapsed = max(now.Sub(lastActivity), 0)

	switch {
	case res.Elapsed > th.IdleDiscard:
		if prev.Open != nil {
			res.Effects = append(res.Effects, Effect{Kind: Discard, Session: DiscardSession(*prev.Open, actual, now)})
		}
		res.Effects = append(res.Effects, open(push, actual, now))

	case res.Elapsed >= time.Second:
		if prev.Open == nil {
			res.Effects = append(res.Effects, open(push, actual, now))
			break
		}
		s := *prev.Open
		s.Duration = InterimDuration(&s, now, th.InterimCap)
		s.ProgressAfter = &actual
		s.UpdatedAt = now
		res.Effects = append(res.Effects, Effect{Kind: Extend, Session: s})

	default:
		if prev.Open == nil {
			res.Effects = append(res.Effects, open(push, actual, now))
			break
		}
		res.Effects = append(res.Effects, touch(*prev.Open, actual, now))
	}

	return res
}

func open(push Push, progress float64, now time.Time) Effect {
	return Effect{Kind: Open, Session: domain.ReadingSession{
		UserID:         push.UserID,
		BookID:         push.BookID,
		StartTime:      now,
		ProgressBefore: progress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}}
}

func touch(s domain.ReadingSession, progress float64, now time.Time) Effect {
	s.ProgressAfter = &progress
	s.UpdatedAt = now
	return Effect{Kind: Touch, Session: s}
}

// LastActivity is the later of the history's last read and the open
// session's start. An explicit session start counts as activity, so a
// reader returning after a long break is measured from the new session.
// It returns the zero time when neither is known.
func LastActivity(h *domain.ReadingHistory, open *domain.ReadingSession) time.Time {
	var last time.Time
	if h != nil && h.LastReadAt != nil {
		last = *h.LastReadAt
	}
	if open != nil && open.StartTime.After(last) {
		last = open.StartTime
	}
	return last
}

// InterimDuration is the duration stored on a still-open session at now,
// capped at limit.
func InterimDuration(s *domain.ReadingSession, now time.Time, limit time.Duration) int64 {
	return min(s.Elapsed(now), int64(limit/time.Second))
}

// DiscardSession closes s at now without crediting any time.
func DiscardSession(s domain.ReadingSession, progress float64, now time.Time) domain.ReadingSession {
	s.EndTime = &now
	s.Duration = 0
	s.ProgressAfter = &progress
	s.UpdatedAt = now
	return s
}

// SupersedeSession closes a stale open session at start+interim duration,
// keeping the interim time it had already accrued.
func SupersedeSession(s domain.ReadingSession, now time.Time) domain.ReadingSession {
	end := s.StartTime.Add(time.Duration(s.Duration) * time.Second)
	s.EndTime = &end
	if s.ProgressAfter == nil {
		p := s.ProgressBefore
		s.ProgressAfter = &p
	}
	s.UpdatedAt = now
	return s
}

// CloseSession ends s at end with an exact duration.
func CloseSession(s domain.ReadingSession, end time.Time, progressAfter float64, now time.Time) domain.ReadingSession {
	s.EndTime = &end
	s.Duration = s.Elapsed(end)
	s.ProgressAfter = &progressAfter
	s.UpdatedAt = now
	return s
}

// Coalesces reports whether an explicit session start at now should reuse open.
func Coalesces(open *domain.ReadingSession, now time.Time, window time.Duration) bool {
	if open == nil {
		return false
	}
	return now.Sub(open.StartTime) <= window
}

// TotalReadingTime recomputes a history total from the durations of the
// other closed sessions plus the session being closed.
func TotalReadingTime(otherClosed, closing int64) int64 {
	return otherClosed + max(closing, 0)
}
