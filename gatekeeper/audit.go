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
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// EventLog receives every deny decision and every incident action.
// Recording is best-effort: the pipeline never fails a request because
// the log did.
type EventLog interface {
	Record(eventType, severity string, details map[string]interface{})
}

// NopEventLog discards every event.
type NopEventLog struct{}

func (NopEventLog) Record(eventType, severity string, details map[string]interface{}) {}

// AuditEvent is one recorded pipeline event.
type AuditEvent struct {
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
}

// AuditQueue is an async EventLog. Events go through a buffered channel
// to writer goroutines; when the queue is full or the database write
// fails, events land in an append-only fallback file so nothing is
// silently lost.
type AuditQueue struct {
	queue   chan AuditEvent
	workers int
	wg      sync.WaitGroup
	db      *sql.DB

	mu     sync.RWMutex
	closed bool

	fallbackMu   sync.Mutex
	fallbackFile *os.File

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// AuditStats is a point-in-time snapshot of queue throughput.
type AuditStats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Depth     int    `json:"depth"`
}

// NewAuditQueue starts a queue with the given buffer size and worker
// count. A nil db writes only to the fallback file.
func NewAuditQueue(queueSize, workers int, db *sql.DB, fallbackPath string) (*AuditQueue, error) {
	fallbackFile, err := os.OpenFile(fallbackPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback file: %w", err)
	}

	aq := &AuditQueue{
		queue:        make(chan AuditEvent, queueSize),
		workers:      workers,
		db:           db,
		fallbackFile: fallbackFile,
	}
	for i := 0; i < workers; i++ {
		aq.wg.Add(1)
		go aq.worker()
	}
	return aq, nil
}

// Record queues an event. A full queue writes straight to the fallback
// file instead of blocking the request path. Events recorded after
// Shutdown are counted as dropped.
func (aq *AuditQueue) Record(eventType, severity string, details map[string]interface{}) {
	event := AuditEvent{
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now(),
		Details:   details,
	}
	aq.mu.RLock()
	defer aq.mu.RUnlock()
	if aq.closed {
		aq.dropped.Add(1)
		return
	}
	select {
	case aq.queue <- event:
	default:
		aq.dropped.Add(1)
		aq.writeFallback(event)
	}
}

func (aq *AuditQueue) worker() {
	defer aq.wg.Done()
	for event := range aq.queue {
		if aq.db == nil {
			aq.writeFallback(event)
			aq.processed.Add(1)
			continue
		}
		var err error
		for retry := 0; retry < 3; retry++ {
			if err = aq.writeDB(event); err == nil {
				aq.processed.Add(1)
				break
			}
			time.Sleep(time.Millisecond * time.Duration(100*(retry+1)))
		}
		if err != nil {
			aq.failed.Add(1)
			aq.writeFallback(event)
		}
	}
}

const auditInsertQuery = `
	INSERT INTO audit_events (event_type, severity, details, created_at)
	VALUES ($1, $2, $3, $4)
`

func (aq *AuditQueue) writeDB(event AuditEvent) error {
	if aq.db == nil {
		return fmt.Errorf("no audit database configured")
	}
	detailsJSON, _ := json.Marshal(event.Details)
	_, err := aq.db.Exec(auditInsertQuery, event.Type, event.Severity, detailsJSON, event.Timestamp)
	return err
}

func (aq *AuditQueue) writeFallback(event AuditEvent) {
	aq.fallbackMu.Lock()
	defer aq.fallbackMu.Unlock()
	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	aq.fallbackFile.Write(append(line, '\n'))
}

// GetStats reports queue throughput counters.
func (aq *AuditQueue) GetStats() AuditStats {
	return AuditStats{
		Processed: aq.processed.Load(),
		Failed:    aq.failed.Load(),
		Dropped:   aq.dropped.Load(),
		Depth:     len(aq.queue),
	}
}

// Shutdown drains the queue, waiting up to the context deadline for
// workers to finish, then closes the fallback file. Shutdown is
// idempotent; later calls return immediately.
func (aq *AuditQueue) Shutdown(ctx context.Context) error {
	aq.mu.Lock()
	if aq.closed {
		aq.mu.Unlock()
		return nil
	}
	aq.closed = true
	close(aq.queue)
	aq.mu.Unlock()

	done := make(chan struct{})
	go func() {
		aq.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	aq.fallbackMu.Lock()
	defer aq.fallbackMu.Unlock()
	if closeErr := aq.fallbackFile.Close(); err == nil {
		err = closeErr
	}
	return err
}
