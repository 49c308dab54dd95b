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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisgate/pipeline/detect"
	"aegisgate/pipeline/shared/clock"
)

type recordingRemediator struct {
	logouts  []string
	purges   []string
	notified []Incident
}

func (r *recordingRemediator) ForceLogout(ctx context.Context, identity string) error {
	r.logouts = append(r.logouts, identity)
	return nil
}

func (r *recordingRemediator) PurgeCredentials(ctx context.Context, identity string) error {
	r.purges = append(r.purges, identity)
	return nil
}

func (r *recordingRemediator) Notify(ctx context.Context, incident Incident) error {
	r.notified = append(r.notified, incident)
	return nil
}

func newTestCoordinator(rem Remediator, gov *Governor) *Coordinator {
	return NewCoordinator(CoordinatorOptions{
		Remediator: rem,
		Governor:   gov,
		Clock:      clock.NewFake(time.Now()),
	})
}

func TestCoordinator_AuthenticationRemediation(t *testing.T) {
	t.Run("high severity forces logout", func(t *testing.T) {
		rem := &recordingRemediator{}
		c := newTestCoordinator(rem, nil)

		id, err := c.Raise(context.Background(), IncidentAuthentication, detect.SeverityHigh, "credential stuffing", "user-1")
		require.NoError(t, err)
		require.NotEmpty(t, id)

		assert.Equal(t, []string{"user-1"}, rem.logouts)
		incidents := c.ActiveIncidents()
		require.Len(t, incidents, 1)
		assert.Equal(t, []string{ActionForcedLogout}, incidents[0].Actions)
	})

	t.Run("medium severity takes no action", func(t *testing.T) {
		rem := &recordingRemediator{}
		c := newTestCoordinator(rem, nil)

		_, err := c.Raise(context.Background(), IncidentAuthentication, detect.SeverityMedium, "odd login pattern", "user-1")
		require.NoError(t, err)
		assert.Empty(t, rem.logouts)
		assert.Empty(t, c.ActiveIncidents()[0].Actions)
	})
}

func TestCoordinator_DeviceCompromiseLockdown(t *testing.T) {
	rem := &recordingRemediator{}
	c := newTestCoordinator(rem, nil)

	_, err := c.Raise(context.Background(), IncidentDeviceCompromise, detect.SeverityCritical, "root detected", "user-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"user-1"}, rem.logouts)
	assert.Equal(t, []string{"user-1"}, rem.purges)
	assert.Contains(t, c.ActiveIncidents()[0].Actions, ActionEmergencyLockdown)

	blocked, reason := c.ShouldBlockApplication(context.Background(), SessionInfo{})
	assert.True(t, blocked)
	assert.Contains(t, reason, "lockdown")
}

func TestCoordinator_DataBreachNotification(t *testing.T) {
	rem := &recordingRemediator{}
	c := newTestCoordinator(rem, nil)

	_, err := c.Raise(context.Background(), IncidentDataBreach, detect.SeverityMedium, "exposed export", "")
	require.NoError(t, err)

	require.Len(t, rem.notified, 1)
	assert.Equal(t, []string{ActionNotificationRecorded}, c.ActiveIncidents()[0].Actions)
}

func TestCoordinator_APIAbuseThrottles(t *testing.T) {
	clk := clock.NewFake(time.Now())
	gov := NewGovernor(clk)
	c := NewCoordinator(CoordinatorOptions{Governor: gov, Clock: clk})

	_, err := c.Raise(context.Background(), IncidentAPIAbuse, detect.SeverityHigh, "scraping", "1.2.3.4")
	require.NoError(t, err)

	throttled, retryAfter := gov.Throttled("1.2.3.4")
	assert.True(t, throttled)
	assert.Equal(t, DefaultAbusePenalty, retryAfter)
	assert.Contains(t, c.ActiveIncidents()[0].Actions, ActionRateLimitExtended)
}

func TestCoordinator_AIAbuseSuspends(t *testing.T) {
	c := newTestCoordinator(nil, nil)

	_, err := c.Raise(context.Background(), IncidentAIAbuse, detect.SeverityHigh, "prompt injection", "user-9")
	require.NoError(t, err)

	assert.True(t, c.AISuspended("user-9"))
	assert.False(t, c.AISuspended("user-8"))

	c.RestoreAI("user-9")
	assert.False(t, c.AISuspended("user-9"))
}

func TestCoordinator_Lifecycle(t *testing.T) {
	c := newTestCoordinator(nil, nil)
	id, _ := c.Raise(context.Background(), IncidentAuthentication, detect.SeverityLow, "noise", "u")

	require.NoError(t, c.Acknowledge(id))
	incidents := c.ActiveIncidents()
	require.Len(t, incidents, 1)
	assert.True(t, incidents[0].Acknowledged)

	require.NoError(t, c.Resolve(context.Background(), id, "false positive"))
	assert.Empty(t, c.ActiveIncidents())

	assert.ErrorIs(t, c.Acknowledge("missing"), ErrIncidentNotFound)
	assert.ErrorIs(t, c.Resolve(context.Background(), "missing", "x"), ErrIncidentNotFound)
}

func TestCoordinator_ShouldBlockApplication(t *testing.T) {
	t.Run("clean state does not block", func(t *testing.T) {
		c := newTestCoordinator(nil, nil)
		blocked, _ := c.ShouldBlockApplication(context.Background(), SessionInfo{Authenticated: true, AuthRequired: true})
		assert.False(t, blocked)
	})

	t.Run("compromised device blocks", func(t *testing.T) {
		c := NewCoordinator(CoordinatorOptions{
			Oracle: StaticOracle{Integrity: DeviceIntegrity{TrustScore: 90, Compromised: true}},
		})
		blocked, reason := c.ShouldBlockApplication(context.Background(), SessionInfo{})
		assert.True(t, blocked)
		assert.Contains(t, reason, "integrity")
	})

	t.Run("low trust score blocks", func(t *testing.T) {
		c := NewCoordinator(CoordinatorOptions{
			Oracle: StaticOracle{Integrity: DeviceIntegrity{TrustScore: 10}},
		})
		blocked, _ := c.ShouldBlockApplication(context.Background(), SessionInfo{})
		assert.True(t, blocked)
	})

	t.Run("oracle failure fails closed", func(t *testing.T) {
		c := NewCoordinator(CoordinatorOptions{Oracle: failingOracle{}})
		blocked, _ := c.ShouldBlockApplication(context.Background(), SessionInfo{})
		assert.True(t, blocked)
	})

	t.Run("open critical incident blocks until resolved", func(t *testing.T) {
		c := newTestCoordinator(nil, nil)
		id, _ := c.Raise(context.Background(), IncidentDataBreach, detect.SeverityCritical, "dump found", "")

		blocked, reason := c.ShouldBlockApplication(context.Background(), SessionInfo{})
		require.True(t, blocked)
		assert.Contains(t, reason, "critical")

		// Time alone never resolves it; an operator must.
		require.NoError(t, c.Resolve(context.Background(), id, "contained and rotated"))
		blocked, _ = c.ShouldBlockApplication(context.Background(), SessionInfo{})
		assert.False(t, blocked)
	})

	t.Run("unauthenticated session needing auth blocks", func(t *testing.T) {
		c := newTestCoordinator(nil, nil)
		blocked, reason := c.ShouldBlockApplication(context.Background(), SessionInfo{AuthRequired: true})
		assert.True(t, blocked)
		assert.Contains(t, reason, "authentication")
	})
}

type failingOracle struct{}

func (failingOracle) Check(ctx context.Context) (DeviceIntegrity, error) {
	return DeviceIntegrity{}, errors.New("attestation service down")
}
