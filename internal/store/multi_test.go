package store

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"betsync/internal/exchange/exchangetest"
	"betsync/internal/infra/log"
	"betsync/internal/infra/metrics"
	"betsync/internal/ordersync"
)

type countingSink struct {
	name  string
	err   error
	calls int
}

func (c *countingSink) Name() string { return c.name }

func (c *countingSink) StoreOrders(ctx context.Context, u ordersync.Update) error {
	c.calls++
	return c.err
}

func TestMultiWritesAllSinks(t *testing.T) {
	boom := errors.New("boom")
	a := &countingSink{name: "a", err: boom}
	b := &countingSink{name: "b"}
	m := NewMulti(log.Nop(), a, b)

	err := m.StoreOrders(context.Background(), ordersync.Update{Seq: 1})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "a: boom")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 2, m.Len())

	assert.NoError(t, NewMulti(log.Nop()).StoreOrders(context.Background(), ordersync.Update{}))
}

func TestSinkFailureCountedOnce(t *testing.T) {
	failing := &countingSink{name: "disk", err: errors.New("full")}
	m := NewMulti(log.Nop(), failing)
	before := testutil.ToFloat64(metrics.SinkErrorsTotal.WithLabelValues("multi"))
	beforeInner := testutil.ToFloat64(metrics.SinkErrorsTotal.WithLabelValues("disk"))

	s := ordersync.New(&exchangetest.Transport{}, m, log.Nop())
	_, err := s.Bootstrap(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SinkErrorsTotal.WithLabelValues("multi")))
	assert.Equal(t, beforeInner, testutil.ToFloat64(metrics.SinkErrorsTotal.WithLabelValues("disk")))
}
