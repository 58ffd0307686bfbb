// Package compliance blocks account actions the exchange has said it will refuse.
package compliance

import (
	"errors"
	"fmt"
	"sync"

	"betsync/internal/exchange/common"
	"betsync/internal/infra/metrics"
)

type Policy string

const (
	PolicyAllow Policy = "allow"
	PolicyDeny  Policy = "deny"
)

type Status struct {
	Exchange common.ExchangeID
	Policy   Policy
	Reason   string
}

// Guard tracks a policy per exchange. Exchanges it has not heard of are allowed.
type Guard struct {
	mu     sync.RWMutex
	status map[common.ExchangeID]Status
}

func NewGuard() *Guard { return &Guard{status: map[common.ExchangeID]Status{}} }

func (g *Guard) UpdateStatus(s Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[s.Exchange] = s
}

func (g *Guard) Status(ex common.ExchangeID) (Status, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.status[ex]
	return s, ok
}

// Check returns an error wrapping common.ErrBlacklisted if action is denied.
func (g *Guard) Check(ex common.ExchangeID, action string) error {
	s, ok := g.Status(ex)
	if !ok || s.Policy != PolicyDeny {
		return nil
	}
	metrics.ComplianceBlocksTotal.WithLabelValues(action).Inc()
	return fmt.Errorf("%s on %s refused (%s): %w", action, ex, s.Reason, common.ErrBlacklisted)
}

// Observe denies the exchange once any call reports the account blacklisted.
func (g *Guard) Observe(ex common.ExchangeID, err error) {
	if err != nil && errors.Is(err, common.ErrBlacklisted) {
		g.UpdateStatus(Status{Exchange: ex, Policy: PolicyDeny, Reason: "punter blacklisted"})
	}
}
