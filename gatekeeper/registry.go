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
	"strings"
	"sync"
)

// Registry maps routes to security policies. Read-mostly: registration
// happens at startup or through the admin surface, resolution on every
// request.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*SecurityPolicy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: map[string]*SecurityPolicy{}}
}

// Register inserts or overwrites a policy by its ID.
func (r *Registry) Register(p *SecurityPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.ID] = p
}

// Get returns the policy with the given ID.
func (r *Registry) Get(id string) (*SecurityPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	return p, ok
}

// Resolve returns the best-matching policy for a route: the longest
// registered prefix wins (an exact path match is the longest possible
// prefix), with ties broken toward a policy naming the method, then by
// lowest ID. The ordering is total over distinct IDs, so resolving the
// same route twice yields the same policy regardless of map iteration
// order. A false return means no policy governs the route.
func (r *Registry) Resolve(path, method string) (*SecurityPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *SecurityPolicy
	for _, p := range r.policies {
		if p.Method != "" && !strings.EqualFold(p.Method, method) {
			continue
		}
		if !strings.HasPrefix(path, p.PathPrefix) {
			continue
		}
		if betterMatch(p, best) {
			best = p
		}
	}
	return best, best != nil
}

func betterMatch(p, best *SecurityPolicy) bool {
	if best == nil {
		return true
	}
	if len(p.PathPrefix) != len(best.PathPrefix) {
		return len(p.PathPrefix) > len(best.PathPrefix)
	}
	if (p.Method != "") != (best.Method != "") {
		return p.Method != ""
	}
	return p.ID < best.ID
}

// Policies returns a snapshot of every registered policy.
func (r *Registry) Policies() []*SecurityPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SecurityPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	return out
}
