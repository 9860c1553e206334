package ratelimit

import (
	"context"
	"time"

	"github.com/meverapp/media-gateway/internal/config"
)

// Tier names surfaced in rate-limit rejections.
const (
	TierGeneral   = "general"
	TierBurst     = "burst"
	TierSustained = "sustained"
)

// Decision is the outcome of a tiered admission check.
type Decision struct {
	Allowed    bool
	Tier       string // exhausted tier when not allowed
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// TieredLimiter applies the general tier to every gated request and, for
// download endpoints, the burst and sustained tiers on top of it.
// Evaluation order is general, burst, sustained, short-circuiting on the
// first exhausted tier. Tiers already charged before the short circuit stay
// charged.
type TieredLimiter struct {
	general   *FixedWindowLimiter
	burst     *FixedWindowLimiter
	sustained *FixedWindowLimiter
}

func NewTiered(cfg config.RateLimitConfig) *TieredLimiter {
	return &TieredLimiter{
		general:   NewFixedWindow(TierGeneral, cfg.General.Limit, cfg.General.Window()),
		burst:     NewFixedWindow(TierBurst, cfg.Burst.Limit, cfg.Burst.Window()),
		sustained: NewFixedWindow(TierSustained, cfg.Sustained.Limit, cfg.Sustained.Window()),
	}
}

// Check charges the request against every applicable tier in order.
func (t *TieredLimiter) Check(key string, download bool) Decision {
	tiers := []*FixedWindowLimiter{t.general}
	if download {
		tiers = append(tiers, t.burst, t.sustained)
	}

	for _, tier := range tiers {
		if !tier.Allow(key) {
			resetAt := tier.Reset(key)
			retryAfter := resetAt.Sub(tier.now())
			if retryAfter < 0 {
				retryAfter = 0
			}

			return Decision{
				Tier:       tier.Name(),
				Limit:      tier.Limit(),
				ResetAt:    resetAt,
				RetryAfter: retryAfter,
			}
		}
	}

	// Report the tightest applicable tier in the decision headers.
	last := tiers[len(tiers)-1]
	return Decision{
		Allowed:   true,
		Tier:      last.Name(),
		Limit:     last.Limit(),
		Remaining: last.Remaining(key),
		ResetAt:   last.Reset(key),
	}
}

// Refund returns the admission charge for a request whose upstream call
// failed. Only called when the skip-failed-requests policy is enabled.
func (t *TieredLimiter) Refund(key string, download bool) {
	t.general.Refund(key)
	if download {
		t.burst.Refund(key)
		t.sustained.Refund(key)
	}
}

// StartJanitors begins the idle-entry sweep on every tier.
func (t *TieredLimiter) StartJanitors(ctx context.Context) {
	t.general.StartJanitor(ctx, t.general.Window())
	t.burst.StartJanitor(ctx, t.burst.Window())
	t.sustained.StartJanitor(ctx, t.sustained.Window())
}
