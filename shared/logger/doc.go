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

/*
Package logger provides structured JSON logging for the enforcement
pipeline.

# Overview

Log entries are written to stdout as single-line JSON, suitable for any
log aggregation stack. Each entry carries:

  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (gatekeeper, incidents, governor, ...)
  - Instance ID and container name (for distributed tracing)
  - Identity (the caller the decision applied to)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("gatekeeper")

Log messages with identity and request context:

	log.Info("10.0.0.4", "req-456", "request allowed", map[string]interface{}{
	    "policy_id": "api.users.create",
	})

Log a deny decision with the failing check:

	log.Deny("10.0.0.4", "req-456", "api.users.create", "rate_limit",
	    "rate limit exceeded", nil)

# Sensitive content

Deny logs for threat detections must carry the matched category only,
never the offending payload; persisting injected payloads verbatim in
logs defeats the point of blocking them.

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
