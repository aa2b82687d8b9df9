package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apptentive/engagekit/internal/targeting"
)

type recordingPruner struct {
	mu    sync.Mutex
	calls []time.Duration
	n     int64
	err   error
}

func (p *recordingPruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, olderThan)
	return p.n, p.err
}

func TestPruneScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		retention   time.Duration
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", "0 3 * * *", time.Hour, true, false},
		{"descriptor schedule", "@daily", time.Hour, true, false},
		{"empty schedule - no error, not running", "", time.Hour, false, false},
		{"invalid schedule", "invalid cron", time.Hour, false, true},
		{"non-positive retention", "@daily", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPruneScheduler(&recordingPruner{}, tt.schedule, tt.retention, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := s.NextRun()
				if next == nil {
					t.Fatal("NextRun() returned nil for running scheduler")
				}
				if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("IsRunning() = true after Stop()")
			}
		})
	}
}

func TestPruneScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewPruneScheduler(&recordingPruner{}, "@hourly", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx), "second Start must fail")

	cancel()
	require.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
	assert.Nil(t, s.NextRun())
}

func TestPruneScheduler_RunOnce(t *testing.T) {
	pruner := &recordingPruner{n: 3}
	s := NewPruneScheduler(pruner, "@daily", 72*time.Hour, nil)

	deleted, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, []time.Duration{72 * time.Hour}, pruner.calls)

	pruner.err = errors.New("database is locked")
	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "database is locked")
}

func TestPruneScheduler_WithManifestStore(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, targeting.SourceServer, []byte(manifestV1))
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = store.Save(ctx, targeting.SourceServer, []byte(manifestV2))
	require.NoError(t, err)
	clock.Advance(30 * 24 * time.Hour)

	s := NewPruneScheduler(store, "@daily", 7*24*time.Hour, nil)
	deleted, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
