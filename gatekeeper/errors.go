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

import "errors"

var (
	// ErrBlocked means the identity is on the block list. Reversal is
	// an administrative action, never automatic.
	ErrBlocked = errors.New("identity blocked")

	// ErrRateLimited means the fixed-window limit was exceeded. The
	// denied request still counts against the window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrQuotaExceeded means the daily or monthly usage quota is spent.
	ErrQuotaExceeded = errors.New("usage quota exceeded")

	// ErrValidationFailed means one or more payload fields failed their
	// declared rules.
	ErrValidationFailed = errors.New("payload validation failed")

	// ErrThreatDetected means a high or critical finding denied the
	// request.
	ErrThreatDetected = errors.New("threat detected")

	// ErrInvalidCredential is returned by an identity verifier for a
	// credential that is well-formed but not valid. Any other verifier
	// error is a collaborator failure and fails closed.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrPolicyNotFound means no policy matched the route. In strict
	// mode this denies; otherwise the request proceeds unchecked.
	ErrPolicyNotFound = errors.New("no policy for route")

	// ErrIncidentNotFound means the incident id is unknown or already
	// resolved.
	ErrIncidentNotFound = errors.New("incident not found")
)
