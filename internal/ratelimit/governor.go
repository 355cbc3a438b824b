// Package ratelimit implements the shared rate limiter and advisory quota
// counter that every Platform Client call passes through (spec §4.1, §5).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// Cost is the estimated unit cost of one platform API call (spec §4.1):
// list = 1, video-list = 1 per batch, comments = 1 per page.
type Cost int

const (
	CostList     Cost = 1
	CostVideoList Cost = 1
	CostComments Cost = 1
)

// Governor gates every outbound platform call behind a token-bucket rate
// limiter and an advisory, operator-set daily quota ceiling. It is a
// single shared instance across all channel workers (spec §5: "shared
// quota counter").
type Governor struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	ceiling   int
	used      int
}

// NewGovernor builds a Governor. unitsPerSec bounds call rate; dailyQuota
// is the operator-set advisory ceiling (spec §6 run config
// daily_quota_units). A dailyQuota <= 0 disables the ceiling.
func NewGovernor(unitsPerSec float64, dailyQuota int) *Governor {
	return &Governor{
		limiter: rate.NewLimiter(rate.Limit(unitsPerSec), max(1, int(unitsPerSec))),
		ceiling: dailyQuota,
	}
}

// Acquire charges cost against the quota ceiling, then blocks for the rate
// limiter. Returns QuotaExceeded synthetically once the ceiling is
// reached, without making the caller wait on the limiter for nothing.
func (g *Governor) Acquire(ctx context.Context, cost Cost) error {
	g.mu.Lock()
	if g.ceiling > 0 && g.used+int(cost) > g.ceiling {
		g.mu.Unlock()
		return model.NewError(model.KindQuotaExceeded, "ratelimit.Acquire", nil)
	}
	g.used += int(cost)
	g.mu.Unlock()

	if err := g.limiter.WaitN(ctx, int(cost)); err != nil {
		return model.NewError(model.KindTransient, "ratelimit.Acquire", err)
	}
	return nil
}

// UsedUnits reports cumulative charged cost, for diagnostics.
func (g *Governor) UsedUnits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}
