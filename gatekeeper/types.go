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
	"net/http"
	"time"

	"aegisgate/pipeline/detect"
)

// Identity is a verified caller. Capabilities come from the identity
// verifier, never from the request itself.
type Identity struct {
	UserID       string   `json:"user_id"`
	SourceAddr   string   `json:"source_addr,omitempty"`
	Tier         Tier     `json:"tier,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the identity carries the capability.
func (id *Identity) HasCapability(cap string) bool {
	if id == nil {
		return false
	}
	for _, c := range id.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Request is the descriptor the pipeline decides on. Body and Query are
// the serialized forms used for threat scanning; Fields is the parsed
// payload used for validation.
type Request struct {
	RequestID  string
	Path       string
	Method     string
	SourceAddr string
	Credential string
	Query      string
	Body       string
	Fields     map[string]interface{}
	SizeBytes  int64

	// Identity is populated by the authentication check. A caller may
	// pre-populate it when verification already happened upstream.
	Identity *Identity
}

// IdentityKey returns the counter key for this request: the source
// address when known, the verified user id otherwise.
func (r *Request) IdentityKey() string {
	if r.SourceAddr != "" {
		return r.SourceAddr
	}
	if r.Identity != nil {
		return r.Identity.UserID
	}
	return ""
}

// AIRequest is a Request bound for a model, carrying the prompt text
// and optional image on top of the transport surfaces.
type AIRequest struct {
	Request

	// Operation identifies the AI feature for quota accounting,
	// e.g. "ai.bio_generation".
	Operation string
	Text      string
	Image     *detect.ImageInput

	// EstimatedCost is the projected spend for this invocation, checked
	// against the policy's cost ceilings.
	EstimatedCost float64
}

// ReasonCode classifies a decision.
type ReasonCode string

const (
	ReasonOK              ReasonCode = "ok"
	ReasonForbidden       ReasonCode = "forbidden"
	ReasonRateLimited     ReasonCode = "rate_limited"
	ReasonPayloadTooLarge ReasonCode = "payload_too_large"
	ReasonInvalidInput    ReasonCode = "invalid_input"
	ReasonUnauthorized    ReasonCode = "unauthorized"
	ReasonThreatDetected  ReasonCode = "threat_detected"
	ReasonQuotaExceeded   ReasonCode = "quota_exceeded"
	ReasonPolicyMissing   ReasonCode = "policy_missing"
	ReasonInternalError   ReasonCode = "internal_error"
)

// checkName maps a reason to the pipeline check that produced it, for
// decision logs.
var checkName = map[ReasonCode]string{
	ReasonForbidden:       "authorization",
	ReasonRateLimited:     "rate_limit",
	ReasonPayloadTooLarge: "payload_size",
	ReasonInvalidInput:    "validation",
	ReasonUnauthorized:    "authentication",
	ReasonThreatDetected:  "threat_detection",
	ReasonQuotaExceeded:   "quota",
	ReasonPolicyMissing:   "policy_resolution",
	ReasonInternalError:   "collaborator",
}

// Decision is the pipeline's verdict on one request.
type Decision struct {
	Allowed      bool              `json:"allowed"`
	Reason       ReasonCode        `json:"reasonCode"`
	HTTPStatus   int               `json:"httpStatus"`
	RetryAfterMs int64             `json:"retryAfterMs,omitempty"`
	FieldErrors  map[string]string `json:"fieldErrors,omitempty"`

	// Warnings are low/medium findings on an allowed request. Threats
	// are the blocking findings behind a threat_detected denial.
	Warnings []detect.Finding `json:"warnings,omitempty"`
	Threats  []detect.Finding `json:"threats,omitempty"`
}

func allow(warnings []detect.Finding) Decision {
	return Decision{
		Allowed:    true,
		Reason:     ReasonOK,
		HTTPStatus: http.StatusOK,
		Warnings:   warnings,
	}
}

func deny(reason ReasonCode, status int) Decision {
	return Decision{Allowed: false, Reason: reason, HTTPStatus: status}
}

func denyRetry(reason ReasonCode, status int, retryAfter time.Duration) Decision {
	d := deny(reason, status)
	if retryAfter > 0 {
		d.RetryAfterMs = retryAfter.Milliseconds()
	}
	return d
}

// SessionInfo describes the caller's current session for the
// application-block query.
type SessionInfo struct {
	AuthRequired  bool
	Authenticated bool
}
