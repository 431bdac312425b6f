// Package indexer runs the correlators of one process.
package indexer

import (
	"context"
	"sync"
	"time"

	"quorum-indexer/internal/correlator"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Runner is a correlator loop.
type Runner interface {
	Start(ctx context.Context) bool
	Stop()
	Wait() error
	Status() correlator.Status
}

// Indexer starts each runner once and stops them together.
type Indexer struct {
	log     *zap.Logger
	runners []Runner
	once    sync.Once
}

func New(log *zap.Logger, runners ...Runner) *Indexer {
	return &Indexer{log: log, runners: runners}
}

// Start launches every runner. Calls after the first do nothing.
func (ix *Indexer) Start(ctx context.Context) {
	ix.once.Do(func() {
		for _, r := range ix.runners {
			if !r.Start(ctx) {
				ix.log.Warn("correlator was already running", zap.String("name", r.Status().Name))
			}
		}
	})
}

// Stop asks every runner to exit. It does not wait.
func (ix *Indexer) Stop() {
	for _, r := range ix.runners {
		r.Stop()
	}
}

// Wait blocks until every runner has exited and returns their fatal errors.
func (ix *Indexer) Wait() error {
	var err error
	for _, r := range ix.runners {
		err = multierr.Append(err, r.Wait())
	}
	return err
}

// Statuses returns the current status of every runner, in start order.
func (ix *Indexer) Statuses() []correlator.Status {
	out := make([]correlator.Status, 0, len(ix.runners))
	for _, r := range ix.runners {
		out = append(out, r.Status())
	}
	return out
}

// Publish sends Statuses to ch every interval until ctx is done, then closes
// ch. A send that would block is dropped.
func (ix *Indexer) Publish(ctx context.Context, ch chan<- []correlator.Status, every time.Duration) {
	defer close(ch)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case ch <- ix.Statuses():
		default:
			ix.log.Debug("dashboard channel full, dropping update")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
