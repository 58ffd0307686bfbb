// Package store fans synchronized orders out to several sinks.
package store

import (
	"context"
	"errors"
	"fmt"

	"betsync/internal/infra/log"
	"betsync/internal/ordersync"
)

// Multi writes every update to each sink in turn. One sink failing does not
// stop the others. Failures are counted by the caller under the name "multi".
type Multi struct {
	sinks  []ordersync.Sink
	logger log.Logger
}

func NewMulti(logger log.Logger, sinks ...ordersync.Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) StoreOrders(ctx context.Context, u ordersync.Update) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.StoreOrders(ctx, u); err != nil {
			m.logger.Warn().Err(err).Str("sink", s.Name()).Int64("seq", u.Seq).Msg("sink write failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
