// Package scheduler triggers favorite syncs when connectivity returns and
// periodically while online.
package scheduler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/worker"
)

// Dispatcher schedules background events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev worker.Event) *worker.Future
}

// ConnectivityProber reports whether the server is reachable.
type ConnectivityProber interface {
	Probe(ctx context.Context) bool
}

// HTTPProber treats any HTTP response from URL as connectivity, whatever its status.
type HTTPProber struct {
	Client  *http.Client
	URL     string
	Timeout time.Duration
}

// Probe sends a HEAD request to p.URL.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Scheduler manages background sync triggers.
type Scheduler struct {
	dispatcher    Dispatcher
	prober        ConnectivityProber
	syncInterval  time.Duration
	probeInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.RWMutex
	isRunning     bool
	isOnline      bool
	lastTrigger   time.Time
	triggers      int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	SyncInterval  time.Duration // How often to drain while online (default: 15 minutes, 0 disables)
	ProbeInterval time.Duration // How often to check connectivity (default: 30 seconds)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval:  15 * time.Minute,
		ProbeInterval: 30 * time.Second,
	}
}

// NewScheduler creates a new Scheduler. prober may be nil, in which case
// connectivity changes only through SetOnlineStatus.
func NewScheduler(dispatcher Dispatcher, prober ConnectivityProber, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}

	return &Scheduler{
		dispatcher:    dispatcher,
		prober:        prober,
		syncInterval:  config.SyncInterval,
		probeInterval: config.ProbeInterval,
		stopCh:        make(chan struct{}),
		isOnline:      true, // Assume online initially
	}
}

// Start starts the background loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	if s.syncInterval > 0 {
		s.wg.Add(1)
		go s.periodicSyncLoop(ctx)
	}
	if s.prober != nil && s.probeInterval > 0 {
		s.wg.Add(1)
		go s.probeLoop(ctx)
	}

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"sync_interval":  s.syncInterval.String(),
		"probe_interval": s.probeInterval.String(),
	})
}

// Stop stops the background loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background sync scheduler stopped", nil)
}

// SetOnlineStatus records connectivity. Going from offline to online
// triggers a sync immediately.
func (s *Scheduler) SetOnlineStatus(ctx context.Context, isOnline bool) {
	s.mu.Lock()
	wasOnline := s.isOnline
	s.isOnline = isOnline
	s.mu.Unlock()

	if wasOnline == isOnline {
		return
	}

	logging.Info("Online status changed", map[string]interface{}{
		"was_online": wasOnline,
		"is_online":  isOnline,
	})

	if isOnline {
		s.TriggerSync(ctx)
	}
}

func (s *Scheduler) probeLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.SetOnlineStatus(ctx, s.prober.Probe(ctx))
		}
	}
}

func (s *Scheduler) periodicSyncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.TriggerSync(ctx)
		}
	}
}

// TriggerSync dispatches a favorite sync event. It returns nil while offline.
func (s *Scheduler) TriggerSync(ctx context.Context) *worker.Future {
	if !s.IsOnline() {
		logging.Debug("Skipping sync - scheduler is offline", nil)
		return nil
	}

	s.mu.Lock()
	s.lastTrigger = time.Now()
	s.triggers++
	s.mu.Unlock()

	return s.dispatcher.Dispatch(ctx, worker.Event{Kind: worker.KindSync, Tag: worker.SyncFavoritesTag})
}

// SchedulerStatus is a snapshot of the scheduler state.
type SchedulerStatus struct {
	IsRunning   bool       `json:"isRunning"`
	IsOnline    bool       `json:"isOnline"`
	LastTrigger *time.Time `json:"lastTrigger,omitempty"`
	Triggers    int        `json:"triggers"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning: s.isRunning,
		IsOnline:  s.isOnline,
		Triggers:  s.triggers,
	}
	if !s.lastTrigger.IsZero() {
		t := s.lastTrigger
		status.LastTrigger = &t
	}
	return status
}

// IsOnline returns whether the scheduler is in online mode.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
