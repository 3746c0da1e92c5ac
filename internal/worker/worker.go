// Package worker dispatches lifecycle, fetch and sync events to registered
// handlers. Each event runs on its own goroutine and resolves a Future.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/metrics"
)

// Kind names an event type.
type Kind string

const (
	KindInstall  Kind = "install"
	KindActivate Kind = "activate"
	KindFetch    Kind = "fetch"
	KindSync     Kind = "sync"
)

// SyncFavoritesTag is the sync tag that drains pending favorite changes.
const SyncFavoritesTag = "sync-favorites"

// Event is one unit of work for the dispatcher.
type Event struct {
	Kind Kind
	// Tag qualifies sync events.
	Tag string
	// Request is set for fetch events.
	Request *http.Request
}

// Result is what a handler produced.
type Result struct {
	// Response answers a fetch event.
	Response *http.Response
	// Value carries handler-specific output, such as a drain summary.
	Value interface{}
	// Skipped is set when the handler ignored the event.
	Skipped bool
}

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) (Result, error)

// Future resolves when the handler for an event returns.
type Future struct {
	done chan struct{}
	res  Result
	err  error
}

func resolved(res Result, err error) *Future {
	f := &Future{done: make(chan struct{}), res: res, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the event completes or ctx ends.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Worker is the event dispatch table.
type Worker struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
	inflight sync.WaitGroup
}

// New creates a Worker with no handlers.
func New() *Worker {
	return &Worker{handlers: make(map[Kind]Handler)}
}

// Register installs h for kind, replacing any previous handler.
func (w *Worker) Register(kind Kind, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Dispatch runs the handler for ev on a new goroutine.
// Events with no registered handler resolve immediately with UNKNOWN_EVENT.
func (w *Worker) Dispatch(ctx context.Context, ev Event) *Future {
	w.mu.RLock()
	h, ok := w.handlers[ev.Kind]
	w.mu.RUnlock()

	if !ok {
		metrics.RecordWorkerEvent(string(ev.Kind), "unknown")
		return resolved(Result{}, apperrors.New(apperrors.ErrUnknownEvent, fmt.Sprintf("no handler for event %q", ev.Kind)))
	}

	f := &Future{done: make(chan struct{})}
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = apperrors.New(apperrors.ErrInternal, fmt.Sprintf("handler for %s panicked: %v", ev.Kind, r))
				logging.Error("Event handler panicked", f.err, map[string]interface{}{"kind": string(ev.Kind)})
				metrics.RecordWorkerEvent(string(ev.Kind), "panic")
			}
		}()

		f.res, f.err = h(ctx, ev)

		switch {
		case f.err != nil:
			metrics.RecordWorkerEvent(string(ev.Kind), "error")
			logging.Debug("Event failed", map[string]interface{}{
				"kind":  string(ev.Kind),
				"tag":   ev.Tag,
				"error": f.err.Error(),
			})
		case f.res.Skipped:
			metrics.RecordWorkerEvent(string(ev.Kind), "skipped")
		default:
			metrics.RecordWorkerEvent(string(ev.Kind), "ok")
		}
	}()
	return f
}

// Wait blocks until every dispatched event has completed.
func (w *Worker) Wait() {
	w.inflight.Wait()
}

// OnTag wraps h so that only sync events carrying tag reach it.
// Other tags resolve as skipped no-ops.
func OnTag(tag string, h Handler) Handler {
	return func(ctx context.Context, ev Event) (Result, error) {
		if ev.Tag != tag {
			return Result{Skipped: true}, nil
		}
		return h(ctx, ev)
	}
}
