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
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisgate/pipeline/detect"
)

func TestNewIncidentStore_NilDBUsesMemory(t *testing.T) {
	store := NewIncidentStore(nil, nil)
	_, ok := store.(*MemoryIncidentStore)
	assert.True(t, ok)
}

func TestMemoryIncidentStore(t *testing.T) {
	store := NewMemoryIncidentStore()
	ctx := context.Background()

	incident := &Incident{
		ID:        "inc-1",
		Type:      IncidentAPIAbuse,
		Severity:  detect.SeverityHigh,
		CreatedAt: time.Now(),
		Actions:   []string{ActionRateLimitExtended},
	}
	require.NoError(t, store.Save(ctx, incident))

	open, err := store.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, store.Resolve(ctx, "inc-1", "handled", time.Now()))
	open, err = store.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.ErrorIs(t, store.Resolve(ctx, "missing", "x", time.Now()), ErrIncidentNotFound)
}

func TestPostgresIncidentStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewIncidentStore(db, SHA256Hasher{})
	hashed := SHA256Hasher{}.Hash("1.2.3.4")

	mock.ExpectExec("INSERT INTO security_incidents").
		WithArgs("inc-1", "api-abuse", "high", "scraping", hashed, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Save(context.Background(), &Incident{
		ID:          "inc-1",
		Type:        IncidentAPIAbuse,
		Severity:    detect.SeverityHigh,
		Description: "scraping",
		Identity:    "1.2.3.4",
		CreatedAt:   time.Now(),
		Actions:     []string{ActionRateLimitExtended},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncidentStore_Resolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewIncidentStore(db, nil)

	t.Run("updates the row", func(t *testing.T) {
		mock.ExpectExec("UPDATE security_incidents").
			WithArgs("inc-1", sqlmock.AnyArg(), "handled").
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, store.Resolve(context.Background(), "inc-1", "handled", time.Now()))
	})

	t.Run("unknown id", func(t *testing.T) {
		mock.ExpectExec("UPDATE security_incidents").
			WithArgs("missing", sqlmock.AnyArg(), "x").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, store.Resolve(context.Background(), "missing", "x", time.Now()), ErrIncidentNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncidentStore_ListOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewIncidentStore(db, nil)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "incident_type", "severity", "description", "identity_hash", "actions", "created_at"}).
		AddRow("inc-1", "ai-abuse", "high", "prompt injection", "abc123", "{ai_access_suspended}", now)
	mock.ExpectQuery("SELECT id, incident_type").WillReturnRows(rows)

	open, err := store.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, IncidentAIAbuse, open[0].Type)
	assert.Equal(t, detect.SeverityHigh, open[0].Severity)
	assert.Equal(t, []string{"ai_access_suspended"}, open[0].Actions)
	require.NoError(t, mock.ExpectationsWereMet())
}
