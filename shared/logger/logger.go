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
	"encoding/json"
	"log"
	"os"
	"time"
)

// Level represents the severity of a log entry
type Level string

const (
	DEBUG Level = "DEBUG"
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
)

// Logger provides structured logging keyed by caller identity
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// Entry represents a structured log entry with the fields required to
// reconstruct a security decision after the fact
type Entry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      Level                  `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	Identity   string                 `json:"identity"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	// Get container name from hostname
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log creates a structured log entry and writes it to stdout
func (l *Logger) Log(level Level, identity, requestID, message string, fields map[string]interface{}) {
	entry := Entry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		Identity:   identity,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, identity, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, identity, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, identity, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, identity, requestID, message, fields)
}

// Deny logs a deny decision with the context needed to reconstruct it:
// the identity, the policy that applied, and the check that failed.
// Callers must not place payload content in the fields of threat-detection
// denials; the matched category is enough.
func (l *Logger) Deny(identity, requestID, policyID, check, reason string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["policy_id"] = policyID
	fields["check"] = check
	fields["reason"] = reason
	l.Log(WARN, identity, requestID, "request denied", fields)
}

// ErrorWithCode logs an error with status code
func (l *Logger) ErrorWithCode(identity, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(identity, requestID, message, fields)
}
