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
	"crypto/sha256"
	"encoding/hex"
)

// IdentityVerifier resolves a raw credential to a verified identity.
// A bad credential returns ErrInvalidCredential (or an error wrapping
// it); any other error is a collaborator failure and the pipeline
// fails closed.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// DeviceIntegrity is the device-integrity oracle's verdict.
type DeviceIntegrity struct {
	TrustScore  int
	Compromised bool
}

// DeviceIntegrityOracle reports the device's current trust state.
type DeviceIntegrityOracle interface {
	Check(ctx context.Context) (DeviceIntegrity, error)
}

// Remediator executes incident remediation against external systems.
// Implementations should be idempotent; the coordinator may invoke the
// same action twice for overlapping incidents.
type Remediator interface {
	ForceLogout(ctx context.Context, identity string) error
	PurgeCredentials(ctx context.Context, identity string) error
	Notify(ctx context.Context, incident Incident) error
}

// Hasher obscures identities before they leave process memory.
type Hasher interface {
	Hash(s string) string
}

// SHA256Hasher is the default identity hasher.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NoopRemediator records nothing and always succeeds. Used when no
// external session or credential system is wired.
type NoopRemediator struct{}

func (NoopRemediator) ForceLogout(ctx context.Context, identity string) error      { return nil }
func (NoopRemediator) PurgeCredentials(ctx context.Context, identity string) error { return nil }
func (NoopRemediator) Notify(ctx context.Context, incident Incident) error         { return nil }

// StaticOracle returns a fixed integrity verdict. Useful for tests and
// for deployments without a device-integrity feed.
type StaticOracle struct {
	Integrity DeviceIntegrity
}

func (o StaticOracle) Check(ctx context.Context) (DeviceIntegrity, error) {
	return o.Integrity, nil
}
