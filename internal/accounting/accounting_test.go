package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/reading-server/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func history(lastReadAt *time.Time, total float64) *domain.ReadingHistory {
	return &domain.ReadingHistory{
		ID:               "hist-1",
		UserID:           "user-1",
		BookID:           "book-1",
		LastReadAt:       lastReadAt,
		TotalProgress:    total,
		TotalReadingTime: 500,
		ReadCount:        2,
		CreatedAt:        t0.Add(-24 * time.Hour),
	}
}

func openSession(start time.Time) *domain.ReadingSession {
	return &domain.ReadingSession{
		ID:             "rsess-1",
		HistoryID:      "hist-1",
		UserID:         "user-1",
		BookID:         "book-1",
		StartTime:      start,
		ProgressBefore: 0.2,
	}
}

func push(progress float64) Push {
	return Push{UserID: "user-1", BookID: "book-1", Progress: progress}
}

func kinds(res Result) []Kind {
	out := make([]Kind, 0, len(res.Effects))
	for _, e := range res.Effects {
		out = append(out, e.Kind)
	}
	return out
}

func TestAccount_FirstAccessCreatesHistoryAndSession(t *testing.T) {
	res := Account(State{}, push(0.3), t0, DefaultThresholds)

	require.True(t, res.CreateHistory)
	assert.Empty(t, res.History.ID)
	assert.Equal(t, "user-1", res.History.UserID)
	assert.InDelta(t, 0.3, res.History.TotalProgress, 1e-9)
	require.NotNil(t, res.History.LastReadAt)
	assert.Equal(t, t0, *res.History.LastReadAt)
	assert.Equal(t, time.Duration(0), res.Elapsed)

	require.Equal(t, []Kind{Open}, kinds(res))
	s := res.Effects[0].Session
	assert.Equal(t, t0, s.StartTime)
	assert.InDelta(t, 0.3, s.ProgressBefore, 1e-9)
	assert.Nil(t, s.EndTime)
	assert.Empty(t, s.ID)
}

func TestAccount_FirstPushReusesExplicitlyStartedSession(t *testing.T) {
	// History exists from createSession but has never been read.
	prev := State{History: history(nil, 0.1), Open: openSession(t0.Add(-time.Minute))}

	res := Account(prev, push(0.25), t0, DefaultThresholds)

	assert.False(t, res.CreateHistory)
	require.Equal(t, []Kind{Touch}, kinds(res))
	assert.Equal(t, "rsess-1", res.Effects[0].Session.ID)
	require.NotNil(t, res.Effects[0].Session.ProgressAfter)
	assert.InDelta(t, 0.25, *res.Effects[0].Session.ProgressAfter, 1e-9)
}

func TestAccount_MonotonicTotalProgress(t *testing.T) {
	last := t0.Add(-time.Minute)
	prev := State{History: history(&last, 0.7), Open: openSession(last)}

	res := Account(prev, push(0.4), t0, DefaultThresholds)

	assert.InDelta(t, 0.7, res.History.TotalProgress, 1e-9)
	require.Len(t, res.Effects, 1)
	assert.InDelta(t, 0.7, *res.Effects[0].Session.ProgressAfter, 1e-9)
}

func TestAccount_ExtendIsCumulativeAndLeavesTotalAlone(t *testing.T) {
	start := t0.Add(-90 * time.Second)
	last := t0.Add(-50 * time.Second)
	prev := State{History: history(&last, 0.3), Open: openSession(start)}

	res := Account(prev, push(0.35), t0, DefaultThresholds)

	require.Equal(t, []Kind{Extend}, kinds(res))
	assert.Equal(t, int64(90), res.Effects[0].Session.Duration)
	assert.Equal(t, 50*time.Second, res.Elapsed)
	assert.Equal(t, int64(500), res.History.TotalReadingTime)
	assert.Equal(t, 2, res.History.ReadCount)
}

func TestAccount_ExtendCapsInterimDuration(t *testing.T) {
	start := t0.Add(-5 * time.Hour)
	last := t0.Add(-time.Hour)
	prev := State{History: history(&last, 0.3), Open: openSession(start)}

	res := Account(prev, push(0.3), t0, DefaultThresholds)

	require.Equal(t, []Kind{Extend}, kinds(res))
	assert.Equal(t, int64(7200), res.Effects[0].Session.Duration)
}

func TestAccount_ExtendWithoutOpenSessionOpensOne(t *testing.T) {
	last := t0.Add(-10 * time.Minute)
	prev := State{History: history(&last, 0.3)}

	res := Account(prev, push(0.3), t0, DefaultThresholds)

	assert.Equal(t, []Kind{Open}, kinds(res))
}

func TestAccount_IdleGapDiscardsAndReopens(t *testing.T) {
	start := t0.Add(-4 * time.Hour)
	last := t0.Add(-3 * time.Hour)
	prev := State{History: history(&last, 0.5), Open: openSession(start)}
	prev.Open.Duration = 3600

	res := Account(prev, push(0.6), t0, DefaultThresholds)

	require.Equal(t, []Kind{Discard, Open}, kinds(res))

	closed := res.Effects[0].Session
	assert.Equal(t, "rsess-1", closed.ID)
	assert.Equal(t, int64(0), closed.Duration)
	require.NotNil(t, closed.EndTime)
	assert.Equal(t, t0, *closed.EndTime)
	assert.InDelta(t, 0.6, *closed.ProgressAfter, 1e-9)

	fresh := res.Effects[1].Session
	assert.Equal(t, t0, fresh.StartTime)
	assert.InDelta(t, 0.6, fresh.ProgressBefore, 1e-9)

	// Discarding never credits time or bumps the read count.
	assert.Equal(t, int64(500), res.History.TotalReadingTime)
	assert.Equal(t, 2, res.History.ReadCount)
}

func TestAccount_IdleGapWithoutOpenSession(t *testing.T) {
	last := t0.Add(-3 * time.Hour)
	prev := State{History: history(&last, 0.5)}

	res := Account(prev, push(0.5), t0, DefaultThresholds)

	assert.Equal(t, []Kind{Open}, kinds(res))
}

func TestAccount_ReturningReaderMeasuredFromSessionStart(t *testing.T) {
	// Last read a day ago; the reader explicitly started a session 10s ago.
	last := t0.Add(-24 * time.Hour)
	start := t0.Add(-10 * time.Second)
	prev := State{History: history(&last, 0.5), Open: openSession(start)}

	res := Account(prev, push(0.55), t0, DefaultThresholds)

	require.Equal(t, []Kind{Extend}, kinds(res))
	assert.Equal(t, 10*time.Second, res.Elapsed)
	assert.Equal(t, "rsess-1", res.Effects[0].Session.ID)
	assert.Equal(t, int64(10), res.Effects[0].Session.Duration)
	assert.Nil(t, res.Effects[0].Session.EndTime)
}

func TestLastActivity(t *testing.T) {
	earlier := t0.Add(-time.Hour)
	later := t0.Add(-time.Minute)

	tests := []struct {
		name string
		h    *domain.ReadingHistory
		open *domain.ReadingSession
		want time.Time
	}{
		{name: "nothing known", want: time.Time{}},
		{name: "never read, session open", h: history(nil, 0), open: openSession(later), want: later},
		{name: "read after session start", h: history(&later, 0), open: openSession(earlier), want: later},
		{name: "session started after last read", h: history(&earlier, 0), open: openSession(later), want: later},
		{name: "no open session", h: history(&earlier, 0), want: earlier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(LastActivity(tt.h, tt.open)))
		})
	}
}

func TestAccount_ExactlyIdleDiscardStillExtends(t *testing.T) {
	last := t0.Add(-2 * time.Hour)
	prev := State{History: history(&last, 0.5), Open: openSession(last)}

	res := Account(prev, push(0.5), t0, DefaultThresholds)

	assert.Equal(t, []Kind{Extend}, kinds(res))
}

func TestAccount_RapidRepeatTouchesOnly(t *testing.T) {
	start := t0.Add(-time.Minute)
	last := t0.Add(-300 * time.Millisecond)
	prev := State{History: history(&last, 0.5), Open: openSession(start)}
	prev.Open.Duration = 42

	res := Account(prev, push(0.55), t0, DefaultThresholds)

	require.Equal(t, []Kind{Touch}, kinds(res))
	assert.Equal(t, int64(42), res.Effects[0].Session.Duration)
	assert.InDelta(t, 0.55, *res.Effects[0].Session.ProgressAfter, 1e-9)
}

func TestAccount_RapidRepeatWithoutOpenSessionOpensOne(t *testing.T) {
	last := t0
	prev := State{History: history(&last, 0.5)}

	res := Account(prev, push(0.5), t0, DefaultThresholds)

	assert.Equal(t, []Kind{Open}, kinds(res))
}

func TestAccount_ClockGoingBackwardsIsRapid(t *testing.T) {
	last := t0.Add(time.Minute)
	prev := State{History: history(&last, 0.5), Open: openSession(t0.Add(-time.Minute))}

	res := Account(prev, push(0.5), t0, DefaultThresholds)

	assert.Equal(t, time.Duration(0), res.Elapsed)
	assert.Equal(t, []Kind{Touch}, kinds(res))
}

func TestAccount_DoesNotMutateInput(t *testing.T) {
	last := t0.Add(-time.Minute)
	h := history(&last, 0.5)
	open := openSession(last)
	prev := State{History: h, Open: open}

	_ = Account(prev, push(0.9), t0, DefaultThresholds)

	assert.InDelta(t, 0.5, h.TotalProgress, 1e-9)
	assert.Equal(t, last, *h.LastReadAt)
	assert.Nil(t, open.ProgressAfter)
	assert.Equal(t, int64(0), open.Duration)
}

func TestAccount_CustomThresholds(t *testing.T) {
	th := Thresholds{IdleDiscard: 10 * time.Minute, InterimCap: 5 * time.Minute}
	start := t0.Add(-20 * time.Minute)
	last := t0.Add(-8 * time.Minute)
	prev := State{History: history(&last, 0.5), Open: openSession(start)}

	res := Account(prev, push(0.5), t0, th)
	require.Equal(t, []Kind{Extend}, kinds(res))
	assert.Equal(t, int64(300), res.Effects[0].Session.Duration)

	idle := t0.Add(-11 * time.Minute)
	prev.History = history(&idle, 0.5)
	res = Account(prev, push(0.5), t0, th)
	assert.Equal(t, []Kind{Discard, Open}, kinds(res))
}

func TestSupersedeSession(t *testing.T) {
	s := *openSession(t0.Add(-3 * time.Hour))
	s.Duration = 1800

	closed := SupersedeSession(s, t0)

	require.NotNil(t, closed.EndTime)
	assert.Equal(t, s.StartTime.Add(30*time.Minute), *closed.EndTime)
	assert.Equal(t, int64(1800), closed.Duration)
	require.NotNil(t, closed.ProgressAfter)
	assert.InDelta(t, 0.2, *closed.ProgressAfter, 1e-9)
}

func TestCloseSession(t *testing.T) {
	s := *openSession(t0)
	s.Duration = 90

	closed := CloseSession(s, t0.Add(100*time.Second), 0.4, t0.Add(101*time.Second))
	assert.Equal(t, int64(100), closed.Duration)
	assert.InDelta(t, 0.4, *closed.ProgressAfter, 1e-9)

	early := CloseSession(s, t0.Add(-time.Minute), 0.4, t0)
	assert.Equal(t, int64(0), early.Duration)
}

func TestCoalesces(t *testing.T) {
	assert.False(t, Coalesces(nil, t0, time.Hour))
	assert.True(t, Coalesces(openSession(t0.Add(-59*time.Minute)), t0, time.Hour))
	assert.True(t, Coalesces(openSession(t0.Add(-time.Hour)), t0, time.Hour))
	assert.False(t, Coalesces(openSession(t0.Add(-61*time.Minute)), t0, time.Hour))
}

func TestTotalReadingTime(t *testing.T) {
	assert.Equal(t, int64(700), TotalReadingTime(600, 100))
	assert.Equal(t, int64(600), TotalReadingTime(600, -5))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "discard", Discard.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
