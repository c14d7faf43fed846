package app

import (
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

// JoinLimiter is a sliding-window limiter on join attempts per identity.
type JoinLimiter struct {
	mu        sync.Mutex
	history   map[domain.IdentityID][]time.Time
	limit     int
	interval  time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	return &JoinLimiter{
		history:  make(map[domain.IdentityID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records an attempt and reports whether it fits in the window.
// A nil limiter or a non-positive limit allows everything.
func (rl *JoinLimiter) Allow(id domain.IdentityID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	rl.sweepLocked(now, windowStart)

	fresh := inWindow(rl.history[id], windowStart)
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	rl.history[id] = append(fresh, now)
	return true
}

// sweepLocked drops identities with no attempt inside the window, at most
// once per interval.
func (rl *JoinLimiter) sweepLocked(now, windowStart time.Time) {
	if now.Sub(rl.lastSweep) < rl.interval {
		return
	}
	rl.lastSweep = now
	for id, attempts := range rl.history {
		if len(inWindow(attempts, windowStart)) == 0 {
			delete(rl.history, id)
		}
	}
}

func inWindow(attempts []time.Time, windowStart time.Time) []time.Time {
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

func (rl *JoinLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
