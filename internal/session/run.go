package session

import (
	"context"
	"errors"
	"time"

	"betsync/internal/exchange/common"
	"betsync/internal/infra/clock"
	"betsync/internal/ordersync"
)

// Run drives order sync until ctx is done: bootstrap when unsynced, then one
// poll per interval. An invalid sequence number resets the view and
// bootstraps again at once; a blacklisted account stops the loop with an
// error. Other failures are logged and retried on the next tick with the
// state untouched.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	for ctx.Err() == nil {
		if err := s.step(ctx); err != nil {
			return err
		}
		if err := clock.Sleep(ctx, s.clock, interval); err != nil {
			return nil
		}
	}
	return nil
}

func (s *Session) step(ctx context.Context) error {
	var err error
	if s.sync.Phase() == ordersync.Unsynced {
		_, err = s.Bootstrap(ctx)
	} else {
		_, err = s.Poll(ctx)
	}
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, common.ErrBlacklisted):
		s.logger.Error().Err(err).Msg("account blacklisted, stopping order sync")
		return err
	case errors.Is(err, common.ErrInvalidSequence):
		s.logger.Warn().Err(err).Int64("seq", s.sync.SequenceNumber()).Msg("sequence number rejected, bootstrapping from scratch")
		s.sync.Reset()
		if _, err := s.Bootstrap(ctx); err != nil {
			if errors.Is(err, common.ErrBlacklisted) {
				return err
			}
			s.logger.Warn().Err(err).Msg("re-bootstrap failed, retrying next tick")
		}
		return nil
	default:
		s.logger.Warn().Err(err).Str("phase", s.sync.Phase().String()).Msg("order sync failed, retrying next tick")
		return nil
	}
}
