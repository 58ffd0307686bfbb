// Package runner runs the daemon's long-lived workers and collects how they
// stopped.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"betsync/internal/infra/log"
)

// Group runs named workers that share a context. A worker that panics is
// reported as an error rather than taking the process down.
type Group struct {
	wg     sync.WaitGroup
	logger log.Logger

	mu   sync.Mutex
	errs []error
}

func New(logger log.Logger) *Group { return &Group{logger: logger} }

// Go starts fn as the worker called name and returns a channel that yields
// its result once.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(done)
		g.logger.Debug().Str("worker", name).Msg("worker started")
		err := g.run(ctx, name, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
			g.logger.Error().Err(err).Str("worker", name).Msg("worker stopped")
		} else {
			g.logger.Debug().Str("worker", name).Msg("worker stopped")
		}
		done <- err
	}()
	return done
}

func (g *Group) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", name, r)
		}
	}()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("worker %s: %w", name, err)
	}
	return nil
}

// Wait blocks until every worker has returned and joins their failures.
// Cancellation is not a failure.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
