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
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"aegisgate/pipeline/shared/clock"
)

func newTestRedisGovernor(t *testing.T) (*RedisGovernor, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rg, err := NewRedisGovernor("redis://"+mr.Addr(), NewGovernor(clock.System()))
	if err != nil {
		t.Fatalf("NewRedisGovernor: %v", err)
	}
	t.Cleanup(func() { rg.Close() })
	return rg, mr
}

func TestRedisGovernor_SlidingWindow(t *testing.T) {
	rg, _ := newTestRedisGovernor(t)
	ctx := context.Background()
	rule := RateLimitRule{Window: time.Minute, MaxRequests: 3}

	for i := 1; i <= 3; i++ {
		ok, _ := rg.Allow(ctx, "1.2.3.4", "api", rule)
		if !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	ok, retryAfter := rg.Allow(ctx, "1.2.3.4", "api", rule)
	if ok {
		t.Fatal("4th request should be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want within (0, 1m]", retryAfter)
	}
}

func TestRedisGovernor_KeysAreIndependent(t *testing.T) {
	rg, _ := newTestRedisGovernor(t)
	ctx := context.Background()
	rule := RateLimitRule{Window: time.Minute, MaxRequests: 1}

	if ok, _ := rg.Allow(ctx, "a", "p", rule); !ok {
		t.Fatal("first request should be allowed")
	}
	if ok, _ := rg.Allow(ctx, "a", "p", rule); ok {
		t.Fatal("second request for same key should be denied")
	}
	if ok, _ := rg.Allow(ctx, "b", "p", rule); !ok {
		t.Error("other identity should be unaffected")
	}
}

func TestRedisGovernor_FallbackOnRedisFailure(t *testing.T) {
	rg, mr := newTestRedisGovernor(t)
	ctx := context.Background()
	rule := RateLimitRule{Window: time.Minute, MaxRequests: 2}

	mr.Close()

	// Redis is gone; the in-memory governor takes over transparently.
	for i := 1; i <= 2; i++ {
		if ok, _ := rg.Allow(ctx, "1.2.3.4", "api", rule); !ok {
			t.Fatalf("fallback request %d should be allowed", i)
		}
	}
	if ok, _ := rg.Allow(ctx, "1.2.3.4", "api", rule); ok {
		t.Error("fallback should enforce the limit")
	}
}

func TestRedisGovernor_BadURL(t *testing.T) {
	if _, err := NewRedisGovernor("not-a-url", NewGovernor(clock.System())); err == nil {
		t.Error("expected error for malformed URL")
	}
}
