// Copyright 2026 AegisGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gatekeeper

import (
	"sync"
	"time"

	"aegisgate/pipeline/shared/clock"
)

// DefaultSweepInterval is how often stale rate counters are evicted.
const DefaultSweepInterval = 5 * time.Minute

type rateCounter struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
	evicted bool
}

// Governor tracks fixed-window request counts per (identity, policy)
// and administrative throttles per identity. All state is in-memory
// and resets on restart.
type Governor struct {
	mu        sync.RWMutex
	counters  map[string]*rateCounter
	penalties map[string]time.Time

	clk  clock.Clock
	done chan struct{}
	once sync.Once
}

// NewGovernor returns a governor using the given clock.
func NewGovernor(clk clock.Clock) *Governor {
	if clk == nil {
		clk = clock.System()
	}
	return &Governor{
		counters:  map[string]*rateCounter{},
		penalties: map[string]time.Time{},
		clk:       clk,
		done:      make(chan struct{}),
	}
}

// Allow applies the fixed-window algorithm for one request. A request
// in a fresh or elapsed window resets the counter to 1 and is allowed.
// Otherwise the counter increments first and the result is compared
// against the limit, so a denied request still fills the window.
func (g *Governor) Allow(identity, policyID string, rule RateLimitRule) (bool, time.Duration) {
	now := g.clk.Now()
	key := identity + "|" + policyID

	// The sweeper may evict a counter between the map lookup and the
	// entry lock. An evicted counter is dead; fetch the live one.
	c := g.counter(key)
	c.mu.Lock()
	for c.evicted {
		c.mu.Unlock()
		c = g.counter(key)
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	if c.count == 0 || !now.Before(c.resetAt) {
		c.count = 1
		c.resetAt = now.Add(rule.Window)
		return true, 0
	}

	c.count++
	if c.count > rule.MaxRequests {
		return false, c.resetAt.Sub(now)
	}
	return true, 0
}

// Throttled reports whether an administrative throttle is active for
// the identity, and how long until it lifts.
func (g *Governor) Throttled(identity string) (bool, time.Duration) {
	now := g.clk.Now()
	g.mu.RLock()
	until, ok := g.penalties[identity]
	g.mu.RUnlock()
	if !ok || !now.Before(until) {
		return false, 0
	}
	return true, until.Sub(now)
}

// Throttle denies all requests from the identity for the duration,
// extending any throttle already in place.
func (g *Governor) Throttle(identity string, d time.Duration) {
	until := g.clk.Now().Add(d)
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.penalties[identity]; !ok || until.After(existing) {
		g.penalties[identity] = until
	}
}

// Sweep evicts counters whose window has elapsed and throttles that
// have lifted. Returns the number of entries removed. Stale counters
// never block new identities; eviction only bounds memory.
func (g *Governor) Sweep() int {
	now := g.clk.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, c := range g.counters {
		c.mu.Lock()
		if !now.Before(c.resetAt) {
			// Marked under the entry lock so a request holding this
			// pointer re-fetches instead of resetting an orphan.
			c.evicted = true
			delete(g.counters, key)
			removed++
		}
		c.mu.Unlock()
	}
	for identity, until := range g.penalties {
		if !now.Before(until) {
			delete(g.penalties, identity)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on a timer until Stop is called.
func (g *Governor) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sweep()
			case <-g.done:
				return
			}
		}
	}()
}

// Stop shuts down the background sweeper.
func (g *Governor) Stop() {
	g.once.Do(func() { close(g.done) })
}

// Count returns the current window count for a key, 0 if none.
func (g *Governor) Count(identity, policyID string) int {
	g.mu.RLock()
	c, ok := g.counters[identity+"|"+policyID]
	g.mu.RUnlock()
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (g *Governor) counter(key string) *rateCounter {
	g.mu.RLock()
	c, ok := g.counters[key]
	g.mu.RUnlock()
	if ok {
		return c
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok = g.counters[key]; ok {
		return c
	}
	c = &rateCounter{}
	g.counters[key] = c
	return c
}
