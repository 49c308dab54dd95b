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
	"math"
	"sync"
	"time"

	"aegisgate/pipeline/shared/clock"
)

// Tier buckets identities into quota classes.
type Tier string

const (
	TierFree      Tier = "free"
	TierBasic     Tier = "basic"
	TierPremium   Tier = "premium"
	TierUnlimited Tier = "unlimited"
)

// TierLimits are the per-day and per-month request allowances of a tier.
type TierLimits struct {
	Daily   int
	Monthly int
}

// DefaultTierLimits applies when a quota is created lazily on first use.
var DefaultTierLimits = map[Tier]TierLimits{
	TierFree:      {Daily: 10, Monthly: 100},
	TierBasic:     {Daily: 50, Monthly: 1000},
	TierPremium:   {Daily: 200, Monthly: 5000},
	TierUnlimited: {Daily: math.MaxInt32, Monthly: math.MaxInt32},
}

// UsageQuota tracks one identity's consumption of one AI operation.
// Daily and monthly counters reset when the local calendar day or month
// changes relative to LastReset, not after a fixed elapsed duration.
type UsageQuota struct {
	Tier         Tier      `json:"tier"`
	DailyUsed    int       `json:"daily_used"`
	DailyLimit   int       `json:"daily_limit"`
	MonthlyUsed  int       `json:"monthly_used"`
	MonthlyLimit int       `json:"monthly_limit"`
	LastReset    time.Time `json:"last_reset"`
}

// QuotaLedger holds per-identity usage quotas and daily cost totals.
// Quotas are long-lived and never evicted.
type QuotaLedger struct {
	mu     sync.Mutex
	quotas map[string]*UsageQuota
	costs  map[string]*costWindow
	clk    clock.Clock
}

type costWindow struct {
	day   time.Time
	spent float64
}

// NewQuotaLedger returns an empty ledger using the given clock.
func NewQuotaLedger(clk clock.Clock) *QuotaLedger {
	if clk == nil {
		clk = clock.System()
	}
	return &QuotaLedger{
		quotas: map[string]*UsageQuota{},
		costs:  map[string]*costWindow{},
		clk:    clk,
	}
}

// Consume grants one request against the (identity, operation) quota,
// creating it from tier defaults on first use. Both counters must be
// under their limits before either increments; a denied request
// consumes nothing.
func (l *QuotaLedger) Consume(identity, operation string, tier Tier) (bool, UsageQuota) {
	now := l.clk.Now()
	key := identity + "|" + operation

	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.quotas[key]
	if !ok {
		limits, known := DefaultTierLimits[tier]
		if !known {
			limits = DefaultTierLimits[TierFree]
		}
		q = &UsageQuota{
			Tier:         tier,
			DailyLimit:   limits.Daily,
			MonthlyLimit: limits.Monthly,
			LastReset:    now,
		}
		l.quotas[key] = q
	}

	prev := q.LastReset
	if !clock.SameDay(prev, now) {
		q.DailyUsed = 0
		q.LastReset = now
	}
	if !clock.SameMonth(prev, now) {
		q.MonthlyUsed = 0
		q.LastReset = now
	}

	if q.DailyUsed >= q.DailyLimit || q.MonthlyUsed >= q.MonthlyLimit {
		return false, *q
	}
	q.DailyUsed++
	q.MonthlyUsed++
	return true, *q
}

// ConsumeCost checks the projected spend against the policy's per
// request and per day ceilings and, when admitted, adds it to the
// identity's daily total. The daily total resets when the local
// calendar day changes.
func (l *QuotaLedger) ConsumeCost(identity, operation string, cost float64, rule CostRule) bool {
	if rule.PerRequest > 0 && cost > rule.PerRequest {
		return false
	}

	now := l.clk.Now()
	key := identity + "|" + operation

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.costs[key]
	if !ok {
		w = &costWindow{day: now}
		l.costs[key] = w
	}
	if !clock.SameDay(w.day, now) {
		w.day = now
		w.spent = 0
	}
	if rule.PerDay > 0 && w.spent+cost > rule.PerDay {
		return false
	}
	w.spent += cost
	return true
}

// Usage returns the current quota state without consuming.
func (l *QuotaLedger) Usage(identity, operation string) (UsageQuota, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.quotas[identity+"|"+operation]
	if !ok {
		return UsageQuota{}, false
	}
	return *q, true
}
