package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) RefreshMarkets(context.Context) (service.RefreshResult, error) {
	c.calls.Add(1)
	return service.RefreshResult{Rows: 3}, c.err
}

type fakeArchiver struct {
	err error
}

func (f fakeArchiver) Export(context.Context) (domain.ArchiveResult, error) {
	return domain.ArchiveResult{RunID: "run", Counts: map[string]int{"picks": 1}}, f.err
}

func TestRefresher_RunLoop(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ok", nil},
		{"gateway fault keeps looping", fmt.Errorf("kalshi: HTTP 502: %w", domain.ErrGatewayFault)},
		{"lock held keeps looping", domain.ErrLockHeld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			league := &countingRefresher{err: tt.err}
			r := NewRefresher(league, discardLogger())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- r.RunLoop(ctx, 5*time.Millisecond) }()

			require.Eventually(t, func() bool { return league.calls.Load() >= 3 }, time.Second, time.Millisecond)
			cancel()
			assert.ErrorIs(t, <-done, context.Canceled)
		})
	}
}

func TestRefresher_RejectsZeroInterval(t *testing.T) {
	r := NewRefresher(&countingRefresher{}, discardLogger())
	assert.Error(t, r.RunLoop(context.Background(), 0))
}

func TestRefresher_Run(t *testing.T) {
	r := NewRefresher(&countingRefresher{err: domain.ErrGatewayFault}, discardLogger())
	err := r.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrGatewayFault)
}

func TestArchiver_Run(t *testing.T) {
	require.NoError(t, NewArchiver(fakeArchiver{}, discardLogger()).Run(context.Background()))
	assert.Error(t, NewArchiver(fakeArchiver{err: errors.New("s3 down")}, discardLogger()).Run(context.Background()))
}

func TestOrchestrator_StopsCleanly(t *testing.T) {
	league := &countingRefresher{}
	o := NewOrchestrator(NewRefresher(league, discardLogger()), NewArchiver(fakeArchiver{}, discardLogger()),
		5*time.Millisecond, "0 6 * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return league.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestOrchestrator_BadCron(t *testing.T) {
	o := NewOrchestrator(nil, NewArchiver(fakeArchiver{}, discardLogger()), 0, "bogus", discardLogger())
	assert.Error(t, o.Run(context.Background()))
}

func TestParseCron(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 7, 30, 0, time.UTC) // Monday

	tests := []struct {
		expr    string
		want    time.Time
		wantErr bool
	}{
		{expr: "* * * * *", want: time.Date(2026, 3, 2, 10, 8, 0, 0, time.UTC)},
		{expr: "*/15 * * * *", want: time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)},
		{expr: "0 6 * * *", want: time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)},
		{expr: "30 9-17/4 * * *", want: time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)},
		{expr: "0 0 1 * *", want: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{expr: "0 12 * * 0", want: time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)},
		{expr: "0 6 * *", wantErr: true},
		{expr: "61 * * * *", wantErr: true},
		{expr: "*/0 * * * *", wantErr: true},
		{expr: "a * * * *", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sched, err := ParseCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			next, err := sched.Next(base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}
