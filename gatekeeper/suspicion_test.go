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

import "testing"

func TestThreatLedger_ThresholdBlocks(t *testing.T) {
	l := NewThreatLedger(5)

	for i := 0; i < 4; i++ {
		if l.Note("1.2.3.4", 1) {
			t.Fatalf("identity blocked after %d findings, threshold is 5", i+1)
		}
	}
	if !l.Note("1.2.3.4", 1) {
		t.Fatal("5th finding should block the identity")
	}

	reason, blocked := l.Blocked("1.2.3.4")
	if !blocked {
		t.Fatal("identity should be on the block list")
	}
	if reason != BlockReasonRepeatOffense {
		t.Errorf("reason = %q, want %q", reason, BlockReasonRepeatOffense)
	}
}

func TestThreatLedger_MultiFindingRequest(t *testing.T) {
	l := NewThreatLedger(5)
	// One request with several findings crosses the threshold at once.
	if !l.Note("10.0.0.1", 5) {
		t.Fatal("5 findings in one request should block")
	}
}

func TestThreatLedger_ResetKeepsBlocks(t *testing.T) {
	l := NewThreatLedger(5)

	l.Note("blocked-ip", 5)
	l.Note("suspicious-ip", 3)

	l.ResetSuspicion()

	if got := l.Suspicion("suspicious-ip"); got != 0 {
		t.Errorf("suspicion after reset = %d, want 0", got)
	}
	if _, blocked := l.Blocked("suspicious-ip"); blocked {
		t.Error("identity under the threshold should not be blocked")
	}
	// Blocks are sticky across suspicion sweeps.
	if _, blocked := l.Blocked("blocked-ip"); !blocked {
		t.Error("blocked identity should survive the sweep")
	}
}

func TestThreatLedger_ExplicitUnblock(t *testing.T) {
	l := NewThreatLedger(5)
	l.Block("1.2.3.4", "manual review")

	if _, blocked := l.Blocked("1.2.3.4"); !blocked {
		t.Fatal("identity should be blocked")
	}
	l.Unblock("1.2.3.4")
	if _, blocked := l.Blocked("1.2.3.4"); blocked {
		t.Error("identity should be unblocked")
	}
}

func TestThreatLedger_EmptyIdentityIgnored(t *testing.T) {
	l := NewThreatLedger(1)
	if l.Note("", 10) {
		t.Error("empty identity must never be blocked")
	}
	if len(l.BlockedIdentities()) != 0 {
		t.Error("block list should be empty")
	}
}
