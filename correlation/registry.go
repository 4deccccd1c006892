// Package correlation matches fire-and-forget request events to their
// eventual responses. A saga step registers a waiter under an opaque
// request id, publishes, and suspends on the waiter's channel; whichever
// of response, deadline timer, caller cancellation, or background sweep
// arrives first resolves the waiter, and every later attempt is a no-op.
package correlation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// OutcomeKind classifies how a waiter was resolved.
type OutcomeKind uint8

const (
	// OutcomeSuccess is a positive response from the remote side.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailed is an explicit negative response.
	OutcomeFailed
	// OutcomeCancelled means the exchange was abandoned on purpose,
	// either interactively by the remote user or by the waiting caller's
	// context.
	OutcomeCancelled
	// OutcomeTimeout is produced only by the registry itself, never by a
	// remote responder.
	OutcomeTimeout
)

// String implements fmt.Stringer for logs and audit metadata.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimeout:
		return "timeout"
	}
	return "unknown"
}

// Outcome resumes a suspended saga step. Payload carries the decoded
// response event when one arrived.
type Outcome struct {
	Kind    OutcomeKind
	Reason  string
	Payload any
}

type ticket struct {
	ch        chan Outcome
	timer     *time.Timer
	deadline  time.Duration
	createdAt time.Time
}

// Config tunes the background sweep. The sweep is defensive cleanup for
// tickets whose deadline timer failed to fire; under normal operation it
// finds nothing.
type Config struct {
	SweepInterval time.Duration
	SweepGrace    time.Duration
}

const (
	defaultSweepInterval = 2 * time.Minute
	defaultSweepGrace    = time.Minute
)

// Registry is the waiter table shared by all saga instances of one
// context. It is safe for concurrent use; register and resolve are
// atomic per id.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	tickets map[string]*ticket

	sweepInterval time.Duration
	sweepGrace    time.Duration

	ignored atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRegistry creates a registry and starts its sweeper goroutine.
// Callers must Close it when the owning context shuts down.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SweepGrace <= 0 {
		cfg.SweepGrace = defaultSweepGrace
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		logger:        logger,
		tickets:       make(map[string]*ticket),
		sweepInterval: cfg.SweepInterval,
		sweepGrace:    cfg.SweepGrace,
		done:          make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweeper()

	return r
}

// Register creates a waiter for id with the given deadline and returns
// its resolution channel. The channel receives exactly one Outcome.
// Registering an id that is already pending replaces nothing: the first
// ticket stays authoritative and the duplicate resolves immediately as
// failed, so no caller can hang on an orphaned channel.
func (r *Registry) Register(id string, deadline time.Duration) <-chan Outcome {
	ch := make(chan Outcome, 1)

	r.mu.Lock()
	if _, exists := r.tickets[id]; exists {
		r.mu.Unlock()
		ch <- Outcome{Kind: OutcomeFailed, Reason: "duplicate correlation id"}
		return ch
	}

	t := &ticket{
		ch:        ch,
		deadline:  deadline,
		createdAt: time.Now(),
	}
	t.timer = time.AfterFunc(deadline, func() {
		r.Resolve(id, Outcome{Kind: OutcomeTimeout, Reason: "deadline exceeded"})
	})
	r.tickets[id] = t
	r.mu.Unlock()

	return ch
}

// Exchange is the request/response primitive of a saga step: register a
// waiter for id, run publish (typically a bus publish of the request
// event), then suspend until the waiter resolves. The waiter must exist
// before the request goes out because bus delivery is synchronous and a
// responder can answer before publish returns. Caller context
// cancellation resolves the waiter as cancelled; if a response wins that
// race its outcome is returned instead.
func (r *Registry) Exchange(ctx context.Context, id string, deadline time.Duration, publish func()) Outcome {
	ch := r.Register(id, deadline)
	publish()

	select {
	case out := <-ch:
		return out
	case <-ctx.Done():
		r.Resolve(id, Outcome{Kind: OutcomeCancelled, Reason: ctx.Err().Error()})
		// The channel is buffered and written exactly once, by whichever
		// resolution won.
		return <-ch
	}
}

// Resolve delivers out to the waiter registered under id and reports
// whether one existed. An unknown id (already resolved, timed out, or
// never registered) is a safe no-op: duplicate and stray responses must
// not crash the orchestrator. The stray is counted, not treated as an
// error.
func (r *Registry) Resolve(id string, out Outcome) bool {
	r.mu.Lock()
	t, ok := r.tickets[id]
	if ok {
		delete(r.tickets, id)
	}
	r.mu.Unlock()

	if !ok {
		r.ignored.Add(1)
		r.logger.Debug("correlation_resolve_ignored", "request_id", id, "outcome", out.Kind.String())
		return false
	}

	t.timer.Stop()
	t.ch <- out
	return true
}

// SweepExpired evicts tickets that outlived their deadline by more than
// the grace window, resolving each as timed out. Returns the number of
// evictions.
func (r *Registry) SweepExpired() int {
	now := time.Now()

	r.mu.Lock()
	var stale []string
	for id, t := range r.tickets {
		if now.Sub(t.createdAt) > t.deadline+r.sweepGrace {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		if r.Resolve(id, Outcome{Kind: OutcomeTimeout, Reason: "evicted by sweep"}) {
			r.logger.Warn("correlation_ticket_swept", "request_id", id)
		}
	}

	return len(stale)
}

// Pending returns the number of outstanding waiters.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}

// Ignored returns how many resolutions found no waiter. Late responses
// arriving after a timeout land here; the count exists for
// observability, the behavior stays a silent discard.
func (r *Registry) Ignored() uint64 {
	return r.ignored.Load()
}

// Close stops the sweeper and resolves every outstanding waiter as
// cancelled so no saga step hangs across shutdown.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		r.mu.Lock()
		ids := make([]string, 0, len(r.tickets))
		for id := range r.tickets {
			ids = append(ids, id)
		}
		r.mu.Unlock()

		for _, id := range ids {
			r.Resolve(id, Outcome{Kind: OutcomeCancelled, Reason: "registry closed"})
		}
	})
}

func (r *Registry) sweeper() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.SweepExpired()
		case <-r.done:
			return
		}
	}
}
