package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter enforces a sliding-window budget per (principal, action) pair.
// Different actions for the same principal have independent budgets, and
// the same action from different principals never shares a budget.
//
// The load→mutate→save sequence is two separate lock acquisitions, not one
// transaction: two processes can each load, see capacity, and both append.
// The limit is therefore a soft bound under heavy contention.
type Limiter struct {
	store  LockedStore
	window time.Duration
	max    int
	now    func() time.Time
}

// NewLimiter creates a limiter over the given store with a window of
// windowMinutes and a budget of maxRequests per key.
func NewLimiter(store LockedStore, windowMinutes, maxRequests int) *Limiter {
	return &Limiter{
		store:  store,
		window: time.Duration(windowMinutes) * time.Minute,
		max:    maxRequests,
		now:    time.Now,
	}
}

// Key returns the store key for a principal/action pair.
func Key(principal, action string) string {
	return principal + ":" + action
}

// CheckAndRecord reports whether the principal may perform the action now
// and, if so, records the attempt. A blocked attempt is NOT recorded — being
// rate limited does not itself consume budget. On write lock contention the
// request is allowed through with a warning: a lock-file hiccup must not
// become a denial-of-service vector, at the cost of possibly undercounting.
func (l *Limiter) CheckAndRecord(principal, action string) (bool, string) {
	store, err := l.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("rate_limit_load_failed")
		store = Store{}
	}

	key := Key(principal, action)
	now := float64(l.now().UnixNano()) / float64(time.Second)
	cutoff := now - l.window.Seconds()

	recent := prune(store[key], cutoff)

	if len(recent) >= l.max {
		oldest := recent[0]
		for _, ts := range recent[1:] {
			if ts < oldest {
				oldest = ts
			}
		}
		elapsedMin := (now - oldest) / 60
		waitMin := int(math.Ceil(float64(l.window/time.Minute) - elapsedMin))
		if waitMin < 0 {
			waitMin = 0
		}
		reason := fmt.Sprintf("rate limit exceeded: %d/%d in %dm, wait %dm",
			len(recent), l.max, int(l.window/time.Minute), waitMin)
		log.Info().
			Str("principal", principal).
			Str("action", action).
			Int("count", len(recent)).
			Msg("rate_limit_exceeded")
		return false, reason
	}

	store[key] = append(recent, now)
	if err := l.store.Save(store); err != nil {
		if errors.Is(err, ErrLockContention) {
			log.Warn().
				Str("principal", principal).
				Str("action", action).
				Msg("rate_limit_write_lock_timeout_failing_open")
			return true, ""
		}
		log.Warn().Err(err).Msg("rate_limit_save_failed")
		return true, ""
	}
	return true, ""
}

// Compact prunes every key to the current window and drops empty keys, so
// stale entries never accumulate for principals that stopped making
// requests. Run periodically in serve mode.
func (l *Limiter) Compact() error {
	store, err := l.store.Load()
	if err != nil {
		return err
	}

	cutoff := float64(l.now().UnixNano())/float64(time.Second) - l.window.Seconds()
	compacted := Store{}
	for key, stamps := range store {
		if recent := prune(stamps, cutoff); len(recent) > 0 {
			compacted[key] = recent
		}
	}

	if err := l.store.Save(compacted); err != nil {
		return fmt.Errorf("saving compacted store: %w", err)
	}
	log.Debug().Int("keys", len(compacted)).Msg("rate_limit_store_compacted")
	return nil
}

// prune keeps only timestamps at or after cutoff, preserving order.
func prune(stamps []float64, cutoff float64) []float64 {
	var recent []float64
	for _, ts := range stamps {
		if ts >= cutoff {
			recent = append(recent, ts)
		}
	}
	return recent
}
