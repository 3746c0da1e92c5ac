// Package scheduler tests for background sync triggering.
package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kimhsiao/tripplanner/backend/internal/worker"
)

// =====================================================
// Test Helpers
// =====================================================

// recordingDispatcher counts dispatched sync events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []worker.Event
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, ev worker.Event) *worker.Future {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
	return worker.New().Dispatch(ctx, worker.Event{Kind: "noop"})
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type stubProber struct {
	online atomic.Bool
}

func (p *stubProber) Probe(context.Context) bool {
	return p.online.Load()
}

func createTestScheduler(t *testing.T, prober ConnectivityProber) (*recordingDispatcher, *Scheduler) {
	t.Helper()
	d := &recordingDispatcher{}
	s := NewScheduler(d, prober, &SchedulerConfig{
		SyncInterval:  50 * time.Millisecond,
		ProbeInterval: 10 * time.Millisecond,
	})
	t.Cleanup(s.Stop)
	return d, s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =====================================================
// Configuration
// =====================================================

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	if config.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v, want 15m", config.SyncInterval)
	}
	if config.ProbeInterval != 30*time.Second {
		t.Errorf("ProbeInterval = %v, want 30s", config.ProbeInterval)
	}
}

func TestNewScheduler_NilConfig(t *testing.T) {
	s := NewScheduler(&recordingDispatcher{}, nil, nil)

	if s.syncInterval != 15*time.Minute {
		t.Errorf("syncInterval = %v, want 15m", s.syncInterval)
	}
	if !s.IsOnline() {
		t.Error("new scheduler should assume online")
	}
	if s.IsRunning() {
		t.Error("new scheduler should not be running")
	}
}

// =====================================================
// Triggering
// =====================================================

func TestTriggerSync_Online(t *testing.T) {
	d, s := createTestScheduler(t, nil)

	if f := s.TriggerSync(context.Background()); f == nil {
		t.Fatal("TriggerSync() returned nil while online")
	}
	if d.count() != 1 {
		t.Fatalf("dispatched %d events, want 1", d.count())
	}
	ev := d.events[0]
	if ev.Kind != worker.KindSync || ev.Tag != worker.SyncFavoritesTag {
		t.Errorf("dispatched %+v, want sync-favorites sync event", ev)
	}

	status := s.GetStatus()
	if status.Triggers != 1 || status.LastTrigger == nil {
		t.Errorf("status = %+v, want one recorded trigger", status)
	}
}

func TestTriggerSync_Offline(t *testing.T) {
	d, s := createTestScheduler(t, nil)
	s.SetOnlineStatus(context.Background(), false)

	if f := s.TriggerSync(context.Background()); f != nil {
		t.Error("TriggerSync() should not dispatch while offline")
	}
	if d.count() != 0 {
		t.Errorf("dispatched %d events, want 0", d.count())
	}
}

func TestSetOnlineStatus_ReconnectTriggersSync(t *testing.T) {
	d, s := createTestScheduler(t, nil)
	ctx := context.Background()

	s.SetOnlineStatus(ctx, false)
	s.SetOnlineStatus(ctx, true)
	s.SetOnlineStatus(ctx, true)

	if d.count() != 1 {
		t.Errorf("dispatched %d events, want exactly 1 on reconnect", d.count())
	}
}

// =====================================================
// Background loops
// =====================================================

func TestStartStop(t *testing.T) {
	_, s := createTestScheduler(t, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	if !s.IsRunning() {
		t.Fatal("scheduler should be running after Start")
	}

	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should be stopped after Stop")
	}
}

func TestPeriodicSync(t *testing.T) {
	d, s := createTestScheduler(t, nil)

	s.Start(context.Background())
	waitFor(t, func() bool { return d.count() >= 2 })
}

func TestProbeLoop_DetectsReconnect(t *testing.T) {
	prober := &stubProber{}
	d := &recordingDispatcher{}
	s := NewScheduler(d, prober, &SchedulerConfig{ProbeInterval: 5 * time.Millisecond})
	defer s.Stop()

	s.Start(context.Background())
	waitFor(t, func() bool { return !s.IsOnline() })
	if d.count() != 0 {
		t.Fatalf("dispatched %d events while offline", d.count())
	}

	prober.online.Store(true)
	waitFor(t, func() bool { return d.count() == 1 })
}

// =====================================================
// HTTPProber
// =====================================================

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())

	p := &HTTPProber{Client: srv.Client(), URL: srv.URL}
	if !p.Probe(context.Background()) {
		t.Error("Probe() = false for a reachable server")
	}

	srv.Close()
	if p.Probe(context.Background()) {
		t.Error("Probe() = true for a closed server")
	}
}
