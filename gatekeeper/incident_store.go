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
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"aegisgate/pipeline/detect"
)

// IncidentStore persists incidents beyond process memory. The pipeline
// works without one; durability is a deployment choice.
type IncidentStore interface {
	Save(ctx context.Context, incident *Incident) error
	Resolve(ctx context.Context, id, note string, at time.Time) error
	ListOpen(ctx context.Context) ([]Incident, error)
}

// NewIncidentStore returns a Postgres-backed store when db is non-nil,
// an in-memory store otherwise.
func NewIncidentStore(db *sql.DB, hasher Hasher) IncidentStore {
	if db == nil {
		return NewMemoryIncidentStore()
	}
	if hasher == nil {
		hasher = SHA256Hasher{}
	}
	return &PostgresIncidentStore{db: db, hasher: hasher}
}

// MemoryIncidentStore keeps incidents in process memory. Contents are
// lost on restart.
type MemoryIncidentStore struct {
	mu        sync.RWMutex
	incidents map[string]Incident
}

// NewMemoryIncidentStore returns an empty in-memory store.
func NewMemoryIncidentStore() *MemoryIncidentStore {
	return &MemoryIncidentStore{incidents: map[string]Incident{}}
}

func (s *MemoryIncidentStore) Save(ctx context.Context, incident *Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[incident.ID] = *incident
	return nil
}

func (s *MemoryIncidentStore) Resolve(ctx context.Context, id, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	incident, ok := s.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}
	incident.Resolved = true
	incident.ResolvedAt = &at
	incident.Resolution = note
	s.incidents[id] = incident
	return nil
}

func (s *MemoryIncidentStore) ListOpen(ctx context.Context) ([]Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Incident
	for _, incident := range s.incidents {
		if !incident.Resolved {
			out = append(out, incident)
		}
	}
	return out, nil
}

// PostgresIncidentStore persists incidents to Postgres. Identities are
// hashed before storage so raw addresses never reach disk.
type PostgresIncidentStore struct {
	db     *sql.DB
	hasher Hasher
}

const incidentInsertQuery = `
	INSERT INTO security_incidents (id, incident_type, severity, description, identity_hash, actions, created_at, resolved)
	VALUES ($1, $2, $3, $4, $5, $6, $7, false)
`

func (s *PostgresIncidentStore) Save(ctx context.Context, incident *Incident) error {
	identityHash := ""
	if incident.Identity != "" {
		identityHash = s.hasher.Hash(incident.Identity)
	}
	_, err := s.db.ExecContext(ctx, incidentInsertQuery,
		incident.ID,
		string(incident.Type),
		string(incident.Severity),
		incident.Description,
		identityHash,
		pq.Array(incident.Actions),
		incident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

const incidentResolveQuery = `
	UPDATE security_incidents
	SET resolved = true, resolved_at = $2, resolution = $3
	WHERE id = $1
`

func (s *PostgresIncidentStore) Resolve(ctx context.Context, id, note string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, incidentResolveQuery, id, at, note)
	if err != nil {
		return fmt.Errorf("failed to resolve incident: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIncidentNotFound
	}
	return nil
}

const incidentListQuery = `
	SELECT id, incident_type, severity, description, identity_hash, actions, created_at
	FROM security_incidents
	WHERE resolved = false
	ORDER BY created_at DESC
`

func (s *PostgresIncidentStore) ListOpen(ctx context.Context) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, incidentListQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var incident Incident
		var typ, severity string
		if err := rows.Scan(
			&incident.ID,
			&typ,
			&severity,
			&incident.Description,
			&incident.Identity,
			pq.Array(&incident.Actions),
			&incident.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incident.Type = IncidentType(typ)
		incident.Severity = detect.Severity(severity)
		out = append(out, incident)
	}
	return out, rows.Err()
}
