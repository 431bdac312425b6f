package correlator

import (
	"context"
	"sync"
	"time"

	"quorum-indexer/internal/metrics"
	"quorum-indexer/internal/models"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// BatchSize caps the records fetched per batch.
const BatchSize = 100

// Intervals are the fixed backoff tiers of a correlator.
type Intervals struct {
	Query time.Duration // list query failed, or the previous committee is not available
	Item  time.Duration // per-record fetch, upsert or checkpoint write failed
	Idle  time.Duration // the last batch was not full
}

// DefaultIntervals returns the production tiers: 60s, 120s and 30s.
func DefaultIntervals() Intervals {
	return Intervals{
		Query: 60 * time.Second,
		Item:  120 * time.Second,
		Idle:  30 * time.Second,
	}
}

// State is the coarse activity of a correlator.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateBackoff State = "backoff"
	StateStopped State = "stopped"
	StateFatal   State = "fatal"
)

// Status is a point-in-time view of a correlator for the status endpoint and
// the dashboard.
type Status struct {
	Name       string            `json:"name"`
	State      State             `json:"state"`
	Checkpoint models.Checkpoint `json:"checkpoint"`
	LastBatch  int               `json:"last_batch"`
	Enriched   uint64            `json:"enriched"`
	Skipped    uint64            `json:"skipped"`
	LastTally  string            `json:"last_tally,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// loop drives one batch function until stopped or fatal. A batch returns the
// number of records it fetched; fewer than BatchSize means caught up.
type loop struct {
	name      string
	log       *zap.Logger
	intervals Intervals
	batch     func(ctx context.Context) (int, error)

	running *atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	err     error

	mu     sync.Mutex
	status Status
}

func newLoop(name string, log *zap.Logger, intervals Intervals) *loop {
	return &loop{
		name:      name,
		log:       log,
		intervals: intervals,
		running:   atomic.NewBool(false),
		status:    Status{Name: name, State: StateIdle},
	}
}

// Start runs the loop in a goroutine. It returns false, doing nothing, if the
// loop is already running.
func (l *loop) Start(ctx context.Context) bool {
	if !l.running.CompareAndSwap(false, true) {
		l.log.Debug("already running")
		return false
	}
	l.mu.Lock()
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		defer l.running.Store(false)
		err := l.run(ctx, stop)
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
	}()
	return true
}

// Stop asks the loop to exit. A batch in flight runs to completion; a backoff
// sleep is cut short.
func (l *loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
}

// Wait blocks until the current run exits and returns its fatal error, if any.
func (l *loop) Wait() error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Running reports whether a run is active.
func (l *loop) Running() bool {
	return l.running.Load()
}

// Status returns a copy of the latest status.
func (l *loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *loop) update(fn func(s *Status)) {
	l.mu.Lock()
	fn(&l.status)
	l.status.UpdatedAt = time.Now()
	l.mu.Unlock()
}

func (l *loop) run(ctx context.Context, stop <-chan struct{}) error {
	l.log.Info("correlator started")
	defer l.log.Info("correlator stopped")

	for {
		select {
		case <-ctx.Done():
			l.update(func(s *Status) { s.State = StateStopped })
			return nil
		case <-stop:
			l.update(func(s *Status) { s.State = StateStopped })
			return nil
		default:
		}

		l.update(func(s *Status) { s.State = StateRunning })
		n, err := l.batch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.update(func(s *Status) { s.State = StateStopped })
				return nil
			}
			if OutcomeOf(err) == Fatal {
				l.log.Error("stopping on malformed upstream data", zap.Error(err))
				metrics.Fatal.WithLabelValues(l.name).Inc()
				l.update(func(s *Status) {
					s.State = StateFatal
					s.LastError = err.Error()
				})
				return err
			}
			delay := delayOf(err)
			l.log.Warn("batch failed, backing off", zap.Error(err), zap.Duration("retry_in", delay))
			metrics.Backoffs.WithLabelValues(l.name, string(phaseOf(err))).Inc()
			l.update(func(s *Status) {
				s.State = StateBackoff
				s.LastError = err.Error()
			})
			l.sleep(ctx, stop, delay)
			continue
		}

		l.update(func(s *Status) {
			s.LastBatch = n
			s.LastError = ""
		})
		if n < BatchSize {
			l.update(func(s *Status) { s.State = StateIdle })
			l.sleep(ctx, stop, l.intervals.Idle)
		}
	}
}

func (l *loop) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-stop:
	case <-t.C:
	}
}
