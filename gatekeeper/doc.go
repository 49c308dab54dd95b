/*
Package gatekeeper implements the request-time security enforcement
pipeline: policy resolution, rate and quota governance, payload
validation, threat-driven denial, and the incident state machine.

# Pipeline

Every request runs the same ordered sequence. Each check may deny and
end the request; side effects commit as checks run, so a denial leaves
earlier counter increments in place.

 1. Block list membership
 2. Rate limit (fixed window per identity and policy)
 3. Payload size
 4. Field validation, then sanitization
 5. Authentication (identity verifier collaborator)
 6. Authorization (capability set)
 7. Threat detection (package detect)
 8. Quota and cost ceilings (AI operations only)

Requests are keyed by identity: the source address when known, the
verified user id otherwise.

# State

All counters, quotas, suspicion accumulators, and the block list are
process-local and reset on restart. Durability is opt-in through the
IncidentStore and EventLog collaborators and the Redis-backed governor.

# Fail-closed

A collaborator failure during a check denies the request. The only
deliberate fail-open is policy resolution: a route with no registered
policy is allowed through unchecked unless strict mode is on.
*/
package gatekeeper
