package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"retrolock/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// historyStub records the arguments of the last List call.
type historyStub struct {
	from, to time.Time
	kind     string
	calls    int

	events []models.ActuatorEvent
	err    error
}

func (h *historyStub) List(_ context.Context, from, to time.Time, typ string) ([]models.ActuatorEvent, error) {
	h.calls++
	h.from, h.to, h.kind = from, to, typ
	return h.events, h.err
}

func (h *historyStub) Append(context.Context, models.ActuatorEvent) error { return nil }

func TestEventLog_ListPassesNormalizedFilter(t *testing.T) {
	t.Parallel()

	kyiv := time.FixedZone("EEST", 3*3600)
	from := time.Date(2025, 8, 1, 9, 0, 0, 0, kyiv)
	to := time.Date(2025, 8, 1, 18, 0, 0, 0, kyiv)
	stored := []models.ActuatorEvent{
		{EventID: "a", Type: string(models.TransitionPulse), Result: ResultPulsed.String()},
		{EventID: "b", Type: string(models.TransitionSetOn), Result: ResultActivated.String(), Engaged: true},
	}
	repo := &historyStub{events: stored}

	got, err := NewEventLogService(repo).List(context.Background(), LogFilter{From: from, To: to, Type: " pulse "})
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	require.Equal(t, 1, repo.calls)
	assert.Equal(t, time.UTC, repo.from.Location())
	assert.Equal(t, time.UTC, repo.to.Location())
	assert.True(t, repo.from.Equal(from))
	assert.True(t, repo.to.Equal(to))
	assert.Equal(t, "PULSE", repo.kind)
}

func TestEventLog_AcceptsEveryDoorKind(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"SET_ON", "set_off", "Pulse", "RESET", ""} {
		repo := &historyStub{}
		_, err := NewEventLogService(repo).List(context.Background(), LogFilter{Type: kind})
		require.NoError(t, err, "kind %q", kind)
		assert.Equal(t, 1, repo.calls)
	}
}

func TestEventLog_OpenBoundsStayZero(t *testing.T) {
	t.Parallel()

	repo := &historyStub{}
	from := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewEventLogService(repo).List(context.Background(), LogFilter{From: from})
	require.NoError(t, err)
	assert.True(t, repo.from.Equal(from))
	assert.True(t, repo.to.IsZero())
}

func TestEventLog_RejectsBadFilters(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		f    LogFilter
	}{
		{name: "inverted range", f: LogFilter{From: day, To: day.Add(-time.Second)}},
		{name: "inverted across zones", f: LogFilter{
			From: day,
			To:   time.Date(2025, 8, 1, 14, 0, 0, 0, time.FixedZone("EEST", 3*3600)),
		}},
		{name: "furnace kind", f: LogFilter{Type: "START"}},
		{name: "result instead of kind", f: LogFilter{Type: "PULSED"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &historyStub{}
			_, err := NewEventLogService(repo).List(context.Background(), tc.f)
			require.Error(t, err)
			assert.True(t, IsInvalidFilter(err))
			assert.Zero(t, repo.calls, "store must not be queried")
		})
	}
}

func TestEventLog_SameInstantIsValid(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	_, err := NewEventLogService(&historyStub{}).List(context.Background(), LogFilter{From: at, To: at})
	assert.NoError(t, err)
}

func TestEventLog_DisabledWithoutStore(t *testing.T) {
	t.Parallel()

	svc := NewEventLogService(nil)

	_, err := svc.List(context.Background(), LogFilter{Type: "RESET"})
	require.ErrorIs(t, err, ErrEventLogDisabled)
	assert.False(t, IsInvalidFilter(err))

	// filter errors win over the missing store
	day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.List(context.Background(), LogFilter{From: day, To: day.Add(-time.Hour)})
	assert.True(t, IsInvalidFilter(err))
}

func TestEventLog_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	_, err := NewEventLogService(&historyStub{err: boom}).List(context.Background(), LogFilter{})
	require.ErrorIs(t, err, boom)
	assert.False(t, IsInvalidFilter(err))
}
