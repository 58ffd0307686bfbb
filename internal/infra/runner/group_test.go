package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betsync/internal/infra/log"
)

func TestGroupCollectsFailures(t *testing.T) {
	g := New(log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	boom := errors.New("boom")

	failed := g.Go(ctx, "sync", func(context.Context) error { return boom })
	stopped := g.Go(ctx, "prices", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := <-failed
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "worker sync")
	cancel()
	assert.ErrorIs(t, <-stopped, context.Canceled)

	err = g.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestGroupRecoversPanics(t *testing.T) {
	g := New(log.Nop())
	err := <-g.Go(context.Background(), "bad", func(context.Context) error { panic("nil map") })
	assert.ErrorContains(t, err, "worker bad panicked: nil map")
	assert.Error(t, g.Wait())

	assert.NoError(t, New(log.Nop()).Wait())
}
