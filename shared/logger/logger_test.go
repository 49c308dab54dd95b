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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		component      string
		instanceID     string
		expectedComp   string
		expectedInstID string
	}{
		{
			name:           "with instance ID set",
			component:      "gatekeeper",
			instanceID:     "instance-123",
			expectedComp:   "gatekeeper",
			expectedInstID: "instance-123",
		},
		{
			name:           "without instance ID",
			component:      "incidents",
			instanceID:     "",
			expectedComp:   "incidents",
			expectedInstID: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.instanceID != "" {
				t.Setenv("INSTANCE_ID", tt.instanceID)
			} else {
				t.Setenv("INSTANCE_ID", "")
			}

			l := New(tt.component)

			if l.Component != tt.expectedComp {
				t.Errorf("Expected component %s, got %s", tt.expectedComp, l.Component)
			}
			if l.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %s, got %s", tt.expectedInstID, l.InstanceID)
			}
			if l.Container == "" {
				t.Error("Expected container to be set from hostname")
			}
		})
	}
}

// captureEntry runs fn with log output captured and returns the parsed entry.
func captureEntry(t *testing.T, fn func()) Entry {
	t.Helper()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	fn()

	output := buf.String()
	jsonStart := strings.Index(output, "{")
	if jsonStart == -1 {
		t.Fatalf("No JSON found in log output: %q", output)
	}
	jsonStr := strings.TrimSpace(output[jsonStart:])

	var entry Entry
	if err := json.Unmarshal([]byte(jsonStr), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v\nOutput: %s", err, output)
	}
	return entry
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		logFunc   func(*Logger, string, string, string, map[string]interface{})
		level     Level
		message   string
		identity  string
		requestID string
		fields    map[string]interface{}
	}{
		{
			name:      "Info log",
			logFunc:   (*Logger).Info,
			level:     INFO,
			message:   "request allowed",
			identity:  "10.0.0.4",
			requestID: "req-456",
			fields:    map[string]interface{}{"policy_id": "api.users.create"},
		},
		{
			name:      "Error log",
			logFunc:   (*Logger).Error,
			level:     ERROR,
			message:   "verifier unavailable",
			identity:  "user-789",
			requestID: "req-012",
			fields:    map[string]interface{}{"status_code": 500},
		},
		{
			name:      "Warn log",
			logFunc:   (*Logger).Warn,
			level:     WARN,
			message:   "no policy registered",
			identity:  "10.1.2.3",
			requestID: "req-def",
			fields:    nil,
		},
		{
			name:      "Debug log",
			logFunc:   (*Logger).Debug,
			level:     DEBUG,
			message:   "sweep completed",
			identity:  "",
			requestID: "",
			fields:    map[string]interface{}{"evicted": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("test-component")
			entry := captureEntry(t, func() {
				tt.logFunc(l, tt.identity, tt.requestID, tt.message, tt.fields)
			})

			if entry.Level != tt.level {
				t.Errorf("Expected level %s, got %s", tt.level, entry.Level)
			}
			if entry.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, entry.Message)
			}
			if entry.Identity != tt.identity {
				t.Errorf("Expected identity %q, got %q", tt.identity, entry.Identity)
			}
			if entry.RequestID != tt.requestID {
				t.Errorf("Expected request ID %q, got %q", tt.requestID, entry.RequestID)
			}
			if entry.Component != "test-component" {
				t.Errorf("Expected component 'test-component', got %q", entry.Component)
			}
			if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
				t.Errorf("Invalid timestamp format: %s", entry.Timestamp)
			}
		})
	}
}

func TestDeny(t *testing.T) {
	l := New("gatekeeper")
	entry := captureEntry(t, func() {
		l.Deny("1.2.3.4", "req-1", "auth.login", "rate_limit", "rate limit exceeded", nil)
	})

	if entry.Level != WARN {
		t.Errorf("Expected WARN level, got %s", entry.Level)
	}
	if entry.Message != "request denied" {
		t.Errorf("Expected 'request denied', got %q", entry.Message)
	}
	if entry.Fields["policy_id"] != "auth.login" {
		t.Errorf("Expected policy_id 'auth.login', got %v", entry.Fields["policy_id"])
	}
	if entry.Fields["check"] != "rate_limit" {
		t.Errorf("Expected check 'rate_limit', got %v", entry.Fields["check"])
	}
	if entry.Fields["reason"] != "rate limit exceeded" {
		t.Errorf("Expected reason 'rate limit exceeded', got %v", entry.Fields["reason"])
	}
}

func TestErrorWithCode(t *testing.T) {
	l := New("gatekeeper")
	entry := captureEntry(t, func() {
		l.ErrorWithCode("user-1", "req-2", "collaborator failure", 500, os.ErrDeadlineExceeded, nil)
	})

	if entry.Level != ERROR {
		t.Errorf("Expected ERROR level, got %s", entry.Level)
	}
	if code, ok := entry.Fields["status_code"].(float64); !ok || int(code) != 500 {
		t.Errorf("Expected status_code 500, got %v", entry.Fields["status_code"])
	}
	if entry.Fields["error"] == "" {
		t.Error("Expected error field to be set")
	}
}
