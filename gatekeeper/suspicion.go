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
)

// DefaultSuspicionThreshold is the finding count at which an identity
// is blocked.
const DefaultSuspicionThreshold = 5

// DefaultSuspicionResetInterval is how often suspicion counters clear.
const DefaultSuspicionResetInterval = time.Hour

// BlockReasonRepeatOffense is the reason recorded for threshold blocks.
const BlockReasonRepeatOffense = "repeated suspicious activity"

// ThreatLedger accumulates per-identity suspicion and holds the block
// list. The two have asymmetric lifetimes: suspicion counters clear on
// a periodic sweep, blocks persist until an explicit unblock.
type ThreatLedger struct {
	mu        sync.RWMutex
	suspicion map[string]int
	blocked   map[string]string

	threshold int
	done      chan struct{}
	once      sync.Once
}

// NewThreatLedger returns a ledger blocking at the given threshold,
// or the default when threshold is not positive.
func NewThreatLedger(threshold int) *ThreatLedger {
	if threshold <= 0 {
		threshold = DefaultSuspicionThreshold
	}
	return &ThreatLedger{
		suspicion: map[string]int{},
		blocked:   map[string]string{},
		threshold: threshold,
		done:      make(chan struct{}),
	}
}

// Note adds n findings to the identity's suspicion counter. Crossing
// the threshold blocks the identity; Note reports whether the identity
// is blocked after the increment.
func (t *ThreatLedger) Note(identity string, n int) bool {
	if identity == "" || n <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.suspicion[identity] += n
	if _, already := t.blocked[identity]; already {
		return true
	}
	if t.suspicion[identity] >= t.threshold {
		t.blocked[identity] = BlockReasonRepeatOffense
		return true
	}
	return false
}

// Blocked returns the block reason for an identity, if blocked.
func (t *ThreatLedger) Blocked(identity string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	reason, ok := t.blocked[identity]
	return reason, ok
}

// Block adds an identity to the block list.
func (t *ThreatLedger) Block(identity, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocked[identity] = reason
}

// Unblock removes an identity from the block list. This is the only
// way off the list; sweeps never unblock.
func (t *ThreatLedger) Unblock(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.blocked, identity)
}

// Suspicion returns the identity's current counter.
func (t *ThreatLedger) Suspicion(identity string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.suspicion[identity]
}

// BlockedIdentities returns a snapshot of the block list.
func (t *ThreatLedger) BlockedIdentities() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.blocked))
	for id, reason := range t.blocked {
		out[id] = reason
	}
	return out
}

// ResetSuspicion clears every suspicion counter. Blocks are untouched:
// an identity that earned its way onto the block list stays there.
func (t *ThreatLedger) ResetSuspicion() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspicion = map[string]int{}
}

// StartSweeper clears suspicion on a timer until Stop is called.
func (t *ThreatLedger) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSuspicionResetInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.ResetSuspicion()
			case <-t.done:
				return
			}
		}
	}()
}

// Stop shuts down the background sweeper.
func (t *ThreatLedger) Stop() {
	t.once.Do(func() { close(t.done) })
}
