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
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"aegisgate/pipeline/detect"
)

// Config is the pipeline's deployment configuration. Values load from
// a YAML file, then environment variables overlay file values.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	DetectionMode  string `yaml:"detection_mode"`
	StrictPolicies bool   `yaml:"strict_policies"`

	SuspicionThreshold     int           `yaml:"suspicion_threshold"`
	SuspicionResetInterval time.Duration `yaml:"suspicion_reset_interval"`
	RateSweepInterval      time.Duration `yaml:"rate_sweep_interval"`
	AbusePenalty           time.Duration `yaml:"abuse_penalty"`

	MinTrustScore    int      `yaml:"min_trust_score"`
	MaxImageBytes    int64    `yaml:"max_image_bytes"`
	AllowedImageMIME []string `yaml:"allowed_image_mime"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`

	AuditQueueSize    int    `yaml:"audit_queue_size"`
	AuditWorkers      int    `yaml:"audit_workers"`
	AuditFallbackPath string `yaml:"audit_fallback_path"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ListenAddr:             ":8090",
		DetectionMode:          string(detect.ModeBasic),
		SuspicionThreshold:     DefaultSuspicionThreshold,
		SuspicionResetInterval: DefaultSuspicionResetInterval,
		RateSweepInterval:      DefaultSweepInterval,
		AbusePenalty:           DefaultAbusePenalty,
		MinTrustScore:          DefaultMinTrustScore,
		MaxImageBytes:          detect.DefaultMaxImageBytes,
		AllowedImageMIME:       detect.DefaultAllowedImageMIME,
		AuditQueueSize:         10000,
		AuditWorkers:           4,
		AuditFallbackPath:      "audit_fallback.jsonl",
		CORSOrigins:            []string{"*"},
	}
}

// LoadConfig reads a YAML file over the defaults, then applies the
// environment. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GATED_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("GATED_DETECTION_MODE"); v != "" {
		c.DetectionMode = v
	}
	if v := os.Getenv("GATED_STRICT_POLICIES"); v != "" {
		c.StrictPolicies = v == "true" || v == "1"
	}
	if v := os.Getenv("GATED_SUSPICION_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SuspicionThreshold = n
		}
	}
	if v := os.Getenv("GATED_SUSPICION_RESET_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SuspicionResetInterval = d
		}
	}
	if v := os.Getenv("GATED_RATE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RateSweepInterval = d
		}
	}
	if v := os.Getenv("GATED_ABUSE_PENALTY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AbusePenalty = d
		}
	}
	if v := os.Getenv("GATED_MIN_TRUST_SCORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinTrustScore = n
		}
	}
	if v := os.Getenv("GATED_MAX_IMAGE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxImageBytes = n
		}
	}
	if v := os.Getenv("GATED_ALLOWED_IMAGE_MIME"); v != "" {
		c.AllowedImageMIME = strings.Split(v, ",")
	}
	if v := os.Getenv("GATED_REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("GATED_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("GATED_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("GATED_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch detect.Mode(c.DetectionMode) {
	case detect.ModeOff, detect.ModeBasic:
	default:
		found := false
		for _, m := range detect.RegisteredModes() {
			if string(m) == c.DetectionMode {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown detection mode %q", c.DetectionMode)
		}
	}
	if c.SuspicionThreshold <= 0 {
		return fmt.Errorf("suspicion_threshold must be positive, got %d", c.SuspicionThreshold)
	}
	if c.SuspicionResetInterval <= 0 {
		return fmt.Errorf("suspicion_reset_interval must be positive")
	}
	if c.RateSweepInterval <= 0 {
		return fmt.Errorf("rate_sweep_interval must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max_image_bytes must be positive, got %d", c.MaxImageBytes)
	}
	if c.AuditQueueSize <= 0 || c.AuditWorkers <= 0 {
		return fmt.Errorf("audit queue size and workers must be positive")
	}
	return nil
}
