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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegisgate/pipeline/detect"
	"aegisgate/pipeline/shared/clock"
	"aegisgate/pipeline/shared/logger"
)

// IncidentType classifies a security incident.
type IncidentType string

const (
	IncidentAuthentication   IncidentType = "authentication"
	IncidentDataBreach       IncidentType = "data-breach"
	IncidentDeviceCompromise IncidentType = "device-compromise"
	IncidentAPIAbuse         IncidentType = "api-abuse"
	IncidentAIAbuse          IncidentType = "ai-abuse"
)

// Remediation action labels recorded on incidents.
const (
	ActionForcedLogout         = "forced_logout"
	ActionEmergencyLockdown    = "emergency_lockdown"
	ActionNotificationRecorded = "notification_recorded"
	ActionRateLimitExtended    = "rate_limit_extended"
	ActionAIAccessSuspended    = "ai_access_suspended"
)

// DefaultMinTrustScore is the device trust floor below which the
// application is blocked.
const DefaultMinTrustScore = 50

// DefaultAbusePenalty is how long api-abuse throttles an identity.
const DefaultAbusePenalty = time.Hour

// Incident is a recorded security event, distinct from a single
// request's deny decision.
type Incident struct {
	ID           string          `json:"id"`
	Type         IncidentType    `json:"type"`
	Severity     detect.Severity `json:"severity"`
	Description  string          `json:"description"`
	Identity     string          `json:"identity,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Acknowledged bool            `json:"acknowledged"`
	Resolved     bool            `json:"resolved"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	Resolution   string          `json:"resolution,omitempty"`
	Actions      []string        `json:"actions"`
}

// Coordinator is the system-wide incident state machine. It aggregates
// incidents from the gatekeeper and from external collaborators,
// executes severity-driven remediation synchronously at creation, and
// answers the application-block query.
type Coordinator struct {
	mu          sync.RWMutex
	incidents   map[string]*Incident
	suspendedAI map[string]bool
	lockdown    bool

	store        IncidentStore
	remediator   Remediator
	governor     *Governor
	oracle       DeviceIntegrityOracle
	audit        EventLog
	log          *logger.Logger
	clk          clock.Clock
	minTrust     int
	abusePenalty time.Duration
}

// CoordinatorOptions configures a Coordinator. Zero-value fields fall
// back to in-memory or no-op collaborators.
type CoordinatorOptions struct {
	Store        IncidentStore
	Remediator   Remediator
	Governor     *Governor
	Oracle       DeviceIntegrityOracle
	Audit        EventLog
	Clock        clock.Clock
	MinTrust     int
	AbusePenalty time.Duration
}

// NewCoordinator builds a coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Store == nil {
		opts.Store = NewMemoryIncidentStore()
	}
	if opts.Remediator == nil {
		opts.Remediator = NoopRemediator{}
	}
	if opts.Oracle == nil {
		opts.Oracle = StaticOracle{Integrity: DeviceIntegrity{TrustScore: 100}}
	}
	if opts.Audit == nil {
		opts.Audit = NopEventLog{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.MinTrust <= 0 {
		opts.MinTrust = DefaultMinTrustScore
	}
	if opts.AbusePenalty <= 0 {
		opts.AbusePenalty = DefaultAbusePenalty
	}
	return &Coordinator{
		incidents:    map[string]*Incident{},
		suspendedAI:  map[string]bool{},
		store:        opts.Store,
		remediator:   opts.Remediator,
		governor:     opts.Governor,
		oracle:       opts.Oracle,
		audit:        opts.Audit,
		log:          logger.New("incident-coordinator"),
		clk:          opts.Clock,
		minTrust:     opts.MinTrust,
		abusePenalty: opts.AbusePenalty,
	}
}

// Raise records an incident and executes its remediation synchronously.
// The incident is open until an operator acknowledges and resolves it.
// Remediation failures are logged and do not abort incident creation.
func (c *Coordinator) Raise(ctx context.Context, typ IncidentType, severity detect.Severity, description, identity string) (string, error) {
	incident := &Incident{
		ID:          uuid.New().String(),
		Type:        typ,
		Severity:    severity,
		Description: description,
		Identity:    identity,
		CreatedAt:   c.clk.Now(),
		Actions:     []string{},
	}

	c.remediate(ctx, incident)

	c.mu.Lock()
	c.incidents[incident.ID] = incident
	c.mu.Unlock()

	if err := c.store.Save(ctx, incident); err != nil {
		c.log.Error(identity, "", "failed to persist incident", map[string]interface{}{
			"incident_id": incident.ID,
			"error":       err.Error(),
		})
	}

	c.audit.Record("incident_raised", string(severity), map[string]interface{}{
		"incident_id": incident.ID,
		"type":        string(typ),
		"actions":     incident.Actions,
	})
	c.log.Warn(identity, "", "incident raised", map[string]interface{}{
		"incident_id": incident.ID,
		"type":        string(typ),
		"severity":    string(severity),
		"actions":     incident.Actions,
	})
	return incident.ID, nil
}

func (c *Coordinator) remediate(ctx context.Context, incident *Incident) {
	record := func(action string) {
		incident.Actions = append(incident.Actions, action)
	}
	fail := func(action string, err error) {
		c.log.Error(incident.Identity, "", "remediation action failed", map[string]interface{}{
			"incident_id": incident.ID,
			"action":      action,
			"error":       err.Error(),
		})
	}

	switch incident.Type {
	case IncidentAuthentication:
		if incident.Severity.Rank() >= detect.SeverityHigh.Rank() {
			if err := c.remediator.ForceLogout(ctx, incident.Identity); err != nil {
				fail(ActionForcedLogout, err)
			}
			record(ActionForcedLogout)
		}

	case IncidentDeviceCompromise:
		if incident.Severity == detect.SeverityCritical {
			if err := c.remediator.ForceLogout(ctx, incident.Identity); err != nil {
				fail(ActionForcedLogout, err)
			}
			if err := c.remediator.PurgeCredentials(ctx, incident.Identity); err != nil {
				fail(ActionEmergencyLockdown, err)
			}
			c.mu.Lock()
			c.lockdown = true
			c.mu.Unlock()
			record(ActionEmergencyLockdown)
		}

	case IncidentDataBreach:
		// External notification is a collaborator concern; the
		// coordinator only records that one was requested.
		if err := c.remediator.Notify(ctx, *incident); err != nil {
			fail(ActionNotificationRecorded, err)
		}
		record(ActionNotificationRecorded)

	case IncidentAPIAbuse:
		if c.governor != nil && incident.Identity != "" {
			c.governor.Throttle(incident.Identity, c.abusePenalty)
			record(ActionRateLimitExtended)
		}

	case IncidentAIAbuse:
		if incident.Identity != "" {
			c.mu.Lock()
			c.suspendedAI[incident.Identity] = true
			c.mu.Unlock()
			record(ActionAIAccessSuspended)
		}
	}
}

// Acknowledge marks an open incident as seen by an operator.
func (c *Coordinator) Acknowledge(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	incident, ok := c.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}
	incident.Acknowledged = true
	return nil
}

// Resolve closes an incident with an operator's resolution note.
// Incidents, critical ones included, only ever close this way; the
// passage of time never resolves one.
func (c *Coordinator) Resolve(ctx context.Context, id, note string) error {
	c.mu.Lock()
	incident, ok := c.incidents[id]
	if !ok {
		c.mu.Unlock()
		return ErrIncidentNotFound
	}
	now := c.clk.Now()
	incident.Resolved = true
	incident.ResolvedAt = &now
	incident.Resolution = note
	snapshot := *incident
	c.mu.Unlock()

	if err := c.store.Resolve(ctx, id, note, now); err != nil {
		c.log.Error(snapshot.Identity, "", "failed to persist resolution", map[string]interface{}{
			"incident_id": id,
			"error":       err.Error(),
		})
	}
	c.audit.Record("incident_resolved", string(snapshot.Severity), map[string]interface{}{
		"incident_id": id,
	})
	return nil
}

// ActiveIncidents returns open incidents, newest first.
func (c *Coordinator) ActiveIncidents() []Incident {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Incident, 0, len(c.incidents))
	for _, incident := range c.incidents {
		if !incident.Resolved {
			out = append(out, *incident)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// AISuspended reports whether AI access is suspended for the identity.
func (c *Coordinator) AISuspended(identity string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.suspendedAI[identity]
}

// RestoreAI lifts an AI suspension. Administrative action.
func (c *Coordinator) RestoreAI(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.suspendedAI, identity)
}

// ShouldBlockApplication reports whether the application must refuse to
// operate right now: device trust is insufficient, a lockdown is in
// force, a critical incident is open, or the session requires
// authentication and has none. An oracle failure blocks (fail closed).
func (c *Coordinator) ShouldBlockApplication(ctx context.Context, session SessionInfo) (bool, string) {
	integrity, err := c.oracle.Check(ctx)
	if err != nil {
		return true, "device integrity unavailable"
	}
	if integrity.Compromised || integrity.TrustScore < c.minTrust {
		return true, "device integrity insufficient"
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lockdown {
		return true, "emergency lockdown in force"
	}
	for _, incident := range c.incidents {
		if !incident.Resolved && incident.Severity == detect.SeverityCritical {
			return true, "unresolved critical incident"
		}
	}
	if session.AuthRequired && !session.Authenticated {
		return true, "authentication required"
	}
	return false, ""
}

// ClearLockdown lifts an emergency lockdown. Administrative action.
func (c *Coordinator) ClearLockdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockdown = false
}
