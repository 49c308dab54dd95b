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

import "time"

// RateLimitRule is a fixed-window limit: at most MaxRequests per Window
// per identity.
type RateLimitRule struct {
	Window      time.Duration `yaml:"window" json:"window"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
}

// CostRule caps projected spend for AI operations.
type CostRule struct {
	PerRequest float64 `yaml:"per_request" json:"per_request"`
	PerDay     float64 `yaml:"per_day" json:"per_day"`
}

// SecurityPolicy is the declarative contract for one endpoint or
// operation. Policies are immutable once registered; mutate a copy and
// re-register to change one.
type SecurityPolicy struct {
	// ID is the operation identifier, unique within a registry.
	ID string

	// PathPrefix and Method select the routes this policy governs.
	// Resolution is exact match first, then longest prefix. An empty
	// Method matches every method.
	PathPrefix string
	Method     string

	RequireAuth          bool
	RequiredCapabilities []string

	ValidationRules []ValidationRule

	RateLimit *RateLimitRule
	CostLimit *CostRule

	// MaxPayloadBytes of 0 means no size check.
	MaxPayloadBytes int64
	AllowFileUpload bool

	// AIOperation names the quota bucket for AI endpoints. Empty for
	// plain API endpoints; those skip the quota check entirely.
	AIOperation string
}
