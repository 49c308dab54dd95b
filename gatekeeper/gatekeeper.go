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
	"errors"
	"fmt"
	"net/http"
	"time"

	"aegisgate/pipeline/detect"
	"aegisgate/pipeline/shared/clock"
	"aegisgate/pipeline/shared/logger"
)

// Pipeline is the enforcement entry point. Every inbound API call and
// AI invocation goes through CheckRequest or CheckAIRequest, which run
// a fixed sequence of checks and return a single decision. Side effects
// (counters, suspicion, incidents) commit as each check runs; a later
// denial does not roll back an earlier increment.
type Pipeline struct {
	registry    *Registry
	governor    *Governor
	redis       *RedisGovernor
	quotas      *QuotaLedger
	threats     *ThreatLedger
	detector    detect.Detector
	verifier    IdentityVerifier
	coordinator *Coordinator
	audit       EventLog
	metrics     *Metrics
	log         *logger.Logger
	clk         clock.Clock
	strict      bool
}

// PipelineOptions wires a Pipeline. Registry, Governor, QuotaLedger,
// ThreatLedger, Detector, and Coordinator fall back to in-memory
// defaults when nil; Verifier has no default, and a policy requiring
// authentication denies every request until one is supplied.
type PipelineOptions struct {
	Registry    *Registry
	Governor    *Governor
	Redis       *RedisGovernor
	Quotas      *QuotaLedger
	Threats     *ThreatLedger
	Detector    detect.Detector
	Verifier    IdentityVerifier
	Coordinator *Coordinator
	Audit       EventLog
	Metrics     *Metrics
	Clock       clock.Clock

	// StrictPolicies denies requests whose route has no policy instead
	// of the default allow-through.
	StrictPolicies bool
}

// NewPipeline builds a pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Governor == nil {
		opts.Governor = NewGovernor(opts.Clock)
	}
	if opts.Quotas == nil {
		opts.Quotas = NewQuotaLedger(opts.Clock)
	}
	if opts.Threats == nil {
		opts.Threats = NewThreatLedger(DefaultSuspicionThreshold)
	}
	if opts.Detector == nil {
		opts.Detector = detect.NewBasicDetector()
	}
	if opts.Audit == nil {
		opts.Audit = NopEventLog{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	if opts.Coordinator == nil {
		opts.Coordinator = NewCoordinator(CoordinatorOptions{
			Governor: opts.Governor,
			Audit:    opts.Audit,
			Clock:    opts.Clock,
		})
	}
	return &Pipeline{
		registry:    opts.Registry,
		governor:    opts.Governor,
		redis:       opts.Redis,
		quotas:      opts.Quotas,
		threats:     opts.Threats,
		detector:    opts.Detector,
		verifier:    opts.Verifier,
		coordinator: opts.Coordinator,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		log:         logger.New("gatekeeper"),
		clk:         opts.Clock,
		strict:      opts.StrictPolicies,
	}
}

// Registry exposes the policy registry for registration.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Coordinator exposes the incident coordinator.
func (p *Pipeline) Coordinator() *Coordinator { return p.coordinator }

// Threats exposes the suspicion and block list ledger.
func (p *Pipeline) Threats() *ThreatLedger { return p.threats }

// Governor exposes the rate governor.
func (p *Pipeline) Governor() *Governor { return p.governor }

// Start launches the background sweepers.
func (p *Pipeline) Start(rateSweep, suspicionSweep time.Duration) {
	p.governor.StartSweeper(rateSweep)
	p.threats.StartSweeper(suspicionSweep)
}

// Stop shuts the background sweepers down.
func (p *Pipeline) Stop() {
	p.governor.Stop()
	p.threats.Stop()
}

// CheckRequest runs the full check sequence for a plain API request.
func (p *Pipeline) CheckRequest(ctx context.Context, req *Request) Decision {
	start := time.Now()
	d := p.check(ctx, req, nil)
	p.metrics.observeDecision("api", d, time.Since(start))
	return d
}

// CheckAIRequest runs the full check sequence for an AI invocation,
// adding prompt/image scanning, the AI suspension check, cost ceilings,
// and quota accounting on top of the API checks.
func (p *Pipeline) CheckAIRequest(ctx context.Context, req *AIRequest) Decision {
	start := time.Now()
	d := p.check(ctx, &req.Request, req)
	p.metrics.observeDecision("ai", d, time.Since(start))
	return d
}

// BlockIdentity puts an identity on the block list. Administrative.
func (p *Pipeline) BlockIdentity(identity, reason string) {
	p.threats.Block(identity, reason)
	p.audit.Record("identity_blocked", string(detect.SeverityHigh), map[string]interface{}{
		"identity": identity,
		"reason":   reason,
	})
	p.metrics.SetBlockedIdentities(len(p.threats.BlockedIdentities()))
}

// UnblockIdentity removes an identity from the block list. This is the
// only path off the list.
func (p *Pipeline) UnblockIdentity(identity string) {
	p.threats.Unblock(identity)
	p.audit.Record("identity_unblocked", string(detect.SeverityLow), map[string]interface{}{
		"identity": identity,
	})
	p.metrics.SetBlockedIdentities(len(p.threats.BlockedIdentities()))
}

// check runs the ordered sequence. ai is nil for plain API requests.
func (p *Pipeline) check(ctx context.Context, req *Request, ai *AIRequest) Decision {
	identity := req.IdentityKey()

	// Block list comes first: a blocked identity gets nothing else.
	if reason, blocked := p.threats.Blocked(identity); blocked {
		return p.denied(req, deny(ReasonForbidden, http.StatusForbidden), reason, nil)
	}

	policy, found := p.registry.Resolve(req.Path, req.Method)
	if !found {
		if p.strict {
			return p.denied(req, deny(ReasonPolicyMissing, http.StatusForbidden), "no policy for route", nil)
		}
		// Default-open on a policy miss. Logged loudly: an uncovered
		// route is usually a registration gap, not an intent.
		p.log.Warn(identity, req.RequestID, "no policy for route, allowing unchecked", map[string]interface{}{
			"path":   req.Path,
			"method": req.Method,
		})
		policy = nil
	}

	// Administrative throttles bind even without a policy.
	if throttled, retryAfter := p.governor.Throttled(identity); throttled {
		return p.denied(req, denyRetry(ReasonRateLimited, http.StatusTooManyRequests, retryAfter), "administrative throttle", policy)
	}

	if policy != nil && policy.RateLimit != nil {
		if ok, retryAfter := p.rateAllow(ctx, identity, policy); !ok {
			return p.denied(req, denyRetry(ReasonRateLimited, http.StatusTooManyRequests, retryAfter), "window limit exceeded", policy)
		}
	}

	if policy != nil && policy.MaxPayloadBytes > 0 && req.SizeBytes > policy.MaxPayloadBytes {
		return p.denied(req, deny(ReasonPayloadTooLarge, http.StatusRequestEntityTooLarge),
			fmt.Sprintf("payload %d bytes over limit %d", req.SizeBytes, policy.MaxPayloadBytes), policy)
	}

	if policy != nil && len(policy.ValidationRules) > 0 {
		if fieldErrors := ValidateFields(req.Fields, policy.ValidationRules); fieldErrors != nil {
			d := deny(ReasonInvalidInput, http.StatusBadRequest)
			d.FieldErrors = fieldErrors
			return p.denied(req, d, "field validation failed", policy)
		}
	}

	if policy != nil && policy.RequireAuth && req.Identity == nil {
		verified, err := p.verifyIdentity(ctx, req.Credential)
		if err != nil {
			if errors.Is(err, ErrInvalidCredential) {
				return p.denied(req, deny(ReasonUnauthorized, http.StatusUnauthorized), "credential rejected", policy)
			}
			// Verifier unavailable: fail closed, never fail open.
			return p.denied(req, deny(ReasonInternalError, http.StatusInternalServerError), "identity verifier unavailable", policy)
		}
		req.Identity = verified
	}

	if policy != nil && len(policy.RequiredCapabilities) > 0 {
		for _, cap := range policy.RequiredCapabilities {
			if !req.Identity.HasCapability(cap) {
				return p.denied(req, deny(ReasonForbidden, http.StatusForbidden),
					fmt.Sprintf("missing capability %s", cap), policy)
			}
		}
	}

	input := detect.Input{URL: req.Path, Body: req.Body, Query: req.Query}
	if ai != nil {
		input.Text = ai.Text
		input.Image = ai.Image
	}
	findings := p.detector.Detect(ctx, input)
	for _, f := range findings {
		p.metrics.observeFindingCount(string(f.Type), string(f.Severity))
	}
	if len(findings) > 0 {
		if p.threats.Note(identity, len(findings)) {
			p.metrics.SetBlockedIdentities(len(p.threats.BlockedIdentities()))
		}
	}
	if blocking := detect.Blocking(findings); len(blocking) > 0 {
		typ := incidentTypeFor(blocking[0].Type)
		severity := detect.Highest(blocking)
		// Only the matched category reaches the incident and the logs;
		// the offending payload itself is never persisted.
		p.coordinator.Raise(ctx, typ, severity,
			fmt.Sprintf("blocked request matched %s", blocking[0].Pattern), identity)
		p.metrics.observeIncident(string(typ), string(severity))

		d := deny(ReasonThreatDetected, http.StatusForbidden)
		d.Threats = blocking
		return p.denied(req, d, string(blocking[0].Type), policy)
	}
	var warnings []detect.Finding
	for _, f := range findings {
		if !f.Severity.Blocking() {
			warnings = append(warnings, f)
		}
	}

	if ai != nil {
		if p.coordinator.AISuspended(identity) {
			return p.denied(req, deny(ReasonForbidden, http.StatusForbidden), "ai access suspended", policy)
		}

		operation := ai.Operation
		if operation == "" && policy != nil {
			operation = policy.AIOperation
		}
		if operation != "" {
			if policy != nil && policy.CostLimit != nil {
				if ok := p.quotas.ConsumeCost(identity, operation, ai.EstimatedCost, *policy.CostLimit); !ok {
					return p.denied(req, deny(ReasonQuotaExceeded, http.StatusTooManyRequests), "cost ceiling exceeded", policy)
				}
			}
			tier := TierFree
			if req.Identity != nil && req.Identity.Tier != "" {
				tier = req.Identity.Tier
			}
			if ok, _ := p.quotas.Consume(identity, operation, tier); !ok {
				return p.denied(req, deny(ReasonQuotaExceeded, http.StatusTooManyRequests), "usage quota exhausted", policy)
			}
		}
	}

	return allow(warnings)
}

func (p *Pipeline) verifyIdentity(ctx context.Context, credential string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, ErrInvalidCredential
	}
	if p.verifier == nil {
		return nil, fmt.Errorf("no identity verifier configured")
	}
	return p.verifier.Verify(ctx, credential)
}

func (p *Pipeline) rateAllow(ctx context.Context, identity string, policy *SecurityPolicy) (bool, time.Duration) {
	if p.redis != nil {
		return p.redis.Allow(ctx, identity, policy.ID, *policy.RateLimit)
	}
	return p.governor.Allow(identity, policy.ID, *policy.RateLimit)
}

// denied logs and audits a denial, then returns it.
func (p *Pipeline) denied(req *Request, d Decision, detail string, policy *SecurityPolicy) Decision {
	policyID := ""
	if policy != nil {
		policyID = policy.ID
	}
	check := checkName[d.Reason]
	p.log.Deny(req.IdentityKey(), req.RequestID, policyID, check, detail, map[string]interface{}{
		"status": d.HTTPStatus,
	})
	p.audit.Record("request_denied", string(d.Reason), map[string]interface{}{
		"identity":  req.IdentityKey(),
		"policy_id": policyID,
		"check":     check,
		"detail":    detail,
		"status":    d.HTTPStatus,
	})
	return d
}

func incidentTypeFor(t detect.FindingType) IncidentType {
	switch t {
	case detect.TypeSQLInjection, detect.TypeXSS, detect.TypePathTraversal:
		return IncidentAPIAbuse
	default:
		return IncidentAIAbuse
	}
}
