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
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// FieldType is the declared type of a payload field.
type FieldType string

const (
	FieldString     FieldType = "string"
	FieldNumber     FieldType = "number"
	FieldBoolean    FieldType = "boolean"
	FieldEmail      FieldType = "email"
	FieldURL        FieldType = "url"
	FieldUUID       FieldType = "uuid"
	FieldDate       FieldType = "date"
	FieldCollection FieldType = "collection"
	FieldObject     FieldType = "object"
)

// ValidationRule declares the checks for one payload field. Checks run
// in a fixed order: presence, type, bounds, allowed values, pattern,
// custom predicate. The sanitizer runs only after every check passes.
type ValidationRule struct {
	Field    string
	Type     FieldType
	Required bool

	MinLength int
	MaxLength int
	Min       *float64
	Max       *float64

	AllowedValues []string
	Pattern       *regexp.Regexp

	// Check is an optional custom predicate; a non-nil error fails the
	// field with the error's message.
	Check func(value interface{}) error

	// Sanitize normalizes the value after validation. The returned
	// value replaces the original in the request.
	Sanitize func(value interface{}) interface{}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ValidateFields checks every field against its rule. On failure it
// returns the per-field errors and leaves fields untouched. On success
// it applies sanitizers in place and returns nil.
//
// A missing field reports only "required"; later checks never run on an
// absent value.
func ValidateFields(fields map[string]interface{}, rules []ValidationRule) map[string]string {
	fieldErrors := map[string]string{}

	for _, rule := range rules {
		value, present := fields[rule.Field]
		if !present || value == nil {
			if rule.Required {
				fieldErrors[rule.Field] = "required"
			}
			continue
		}
		if msg := checkField(value, rule); msg != "" {
			fieldErrors[rule.Field] = msg
		}
	}

	if len(fieldErrors) > 0 {
		return fieldErrors
	}

	// All fields passed; sanitized values replace the originals.
	for _, rule := range rules {
		if rule.Sanitize == nil {
			continue
		}
		if value, present := fields[rule.Field]; present && value != nil {
			fields[rule.Field] = rule.Sanitize(value)
		}
	}
	return nil
}

func checkField(value interface{}, rule ValidationRule) string {
	// Type check gates everything else.
	str, num, ok := coerce(value, rule.Type)
	if !ok {
		return fmt.Sprintf("must be a %s", rule.Type)
	}

	if isStringType(rule.Type) {
		if rule.MinLength > 0 && len(str) < rule.MinLength {
			return fmt.Sprintf("must be at least %d characters", rule.MinLength)
		}
		if rule.MaxLength > 0 && len(str) > rule.MaxLength {
			return fmt.Sprintf("must be at most %d characters", rule.MaxLength)
		}
		if len(rule.AllowedValues) > 0 && !contains(rule.AllowedValues, str) {
			return "not an allowed value"
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(str) {
			return "invalid format"
		}
	}

	if rule.Type == FieldNumber {
		if rule.Min != nil && num < *rule.Min {
			return fmt.Sprintf("must be at least %v", *rule.Min)
		}
		if rule.Max != nil && num > *rule.Max {
			return fmt.Sprintf("must be at most %v", *rule.Max)
		}
	}

	if rule.Check != nil {
		if err := rule.Check(value); err != nil {
			return err.Error()
		}
	}
	return ""
}

// coerce verifies the value against the declared type, returning the
// string form for string-like types and the numeric value for numbers.
func coerce(value interface{}, t FieldType) (str string, num float64, ok bool) {
	switch t {
	case FieldString:
		str, ok = value.(string)
	case FieldNumber:
		switch v := value.(type) {
		case float64:
			num, ok = v, true
		case float32:
			num, ok = float64(v), true
		case int:
			num, ok = float64(v), true
		case int64:
			num, ok = float64(v), true
		}
	case FieldBoolean:
		_, ok = value.(bool)
	case FieldEmail:
		str, ok = value.(string)
		ok = ok && emailPattern.MatchString(str)
	case FieldURL:
		str, ok = value.(string)
		if ok {
			u, err := url.Parse(str)
			ok = err == nil && u.Scheme != "" && u.Host != ""
		}
	case FieldUUID:
		str, ok = value.(string)
		if ok {
			_, err := uuid.Parse(str)
			ok = err == nil
		}
	case FieldDate:
		str, ok = value.(string)
		if ok {
			ok = false
			for _, layout := range dateLayouts {
				if _, err := time.Parse(layout, str); err == nil {
					ok = true
					break
				}
			}
		}
	case FieldCollection:
		_, ok = value.([]interface{})
	case FieldObject:
		_, ok = value.(map[string]interface{})
	}
	return str, num, ok
}

func isStringType(t FieldType) bool {
	switch t {
	case FieldString, FieldEmail, FieldURL, FieldUUID, FieldDate:
		return true
	}
	return false
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
