// Package oracle wraps the reasoning service used for false-positive
// filtering and narrative summarization.
package oracle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/logging"
)

var logger = logging.New()

// Unavailable is the fixed sentinel returned when no provider is
// configured or the provider errors. Callers test for it instead of
// handling errors.
const Unavailable = "[oracle unavailable]"

// ErrUnavailable marks an oracle failure at the provider level.
var ErrUnavailable = errors.New("oracle unavailable")

// Provider is one reasoning backend.
type Provider interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Advisor absorbs provider errors so stages never fail on oracle trouble.
// A nil provider puts the advisor in degraded mode permanently.
type Advisor struct {
	provider Provider
}

func NewAdvisor(p Provider) *Advisor {
	return &Advisor{provider: p}
}

// Ask returns the provider's response, or the Unavailable sentinel when
// the provider is missing or errors. It never returns an error.
func (a *Advisor) Ask(ctx context.Context, prompt string) string {
	if a == nil || a.provider == nil {
		return Unavailable
	}
	resp, err := a.provider.Ask(ctx, prompt)
	if err != nil {
		logger.Warn("oracle request failed", zap.Error(err))
		return Unavailable
	}
	return resp
}

// Available reports whether a provider is configured.
func (a *Advisor) Available() bool {
	return a != nil && a.provider != nil
}
