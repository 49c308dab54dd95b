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

// Command gated runs the enforcement pipeline as a standalone service:
// the admin API, Prometheus metrics, and the decision endpoints.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"aegisgate/pipeline/detect"
	"aegisgate/pipeline/gatekeeper"
	"aegisgate/pipeline/shared/clock"
	"aegisgate/pipeline/shared/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := gatekeeper.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLog := logger.New("gated")

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		appLog.Info("", "", "database connected", nil)
	}

	audit, err := gatekeeper.NewAuditQueue(cfg.AuditQueueSize, cfg.AuditWorkers, db, cfg.AuditFallbackPath)
	if err != nil {
		log.Fatalf("failed to start audit queue: %v", err)
	}

	var detector detect.Detector
	if detect.Mode(cfg.DetectionMode) == detect.ModeBasic {
		detector = detect.NewBasicDetector(
			detect.WithMaxImageBytes(cfg.MaxImageBytes),
			detect.WithAllowedImageMIME(cfg.AllowedImageMIME),
		)
	} else {
		detector, err = detect.NewDetector(detect.Mode(cfg.DetectionMode))
		if err != nil {
			log.Fatalf("failed to build detector: %v", err)
		}
	}

	clk := clock.System()
	governor := gatekeeper.NewGovernor(clk)
	registry := gatekeeper.NewRegistry()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := gatekeeper.NewMetrics(reg)

	coordinator := gatekeeper.NewCoordinator(gatekeeper.CoordinatorOptions{
		Store:        gatekeeper.NewIncidentStore(db, gatekeeper.SHA256Hasher{}),
		Governor:     governor,
		Audit:        audit,
		Clock:        clk,
		MinTrust:     cfg.MinTrustScore,
		AbusePenalty: cfg.AbusePenalty,
	})

	var verifier gatekeeper.IdentityVerifier
	if cfg.JWTSecret != "" {
		verifier = gatekeeper.NewJWTVerifier([]byte(cfg.JWTSecret))
	} else {
		appLog.Warn("", "", "no JWT secret configured, auth-required policies will deny", nil)
	}

	var redisGov *gatekeeper.RedisGovernor
	if cfg.RedisURL != "" {
		redisGov, err = gatekeeper.NewRedisGovernor(cfg.RedisURL, governor)
		if err != nil {
			appLog.Warn("", "", "redis unavailable, using local rate limiting", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redisGov.Close()
			appLog.Info("", "", "redis rate limiting enabled", nil)
		}
	}

	pipeline := gatekeeper.NewPipeline(gatekeeper.PipelineOptions{
		Registry:       registry,
		Governor:       governor,
		Redis:          redisGov,
		Threats:        gatekeeper.NewThreatLedger(cfg.SuspicionThreshold),
		Detector:       detector,
		Verifier:       verifier,
		Coordinator:    coordinator,
		Audit:          audit,
		Metrics:        metrics,
		Clock:          clk,
		StrictPolicies: cfg.StrictPolicies,
	})
	pipeline.Start(cfg.RateSweepInterval, cfg.SuspicionResetInterval)
	defer pipeline.Stop()

	router := mux.NewRouter()
	gatekeeper.NewAdminServer(pipeline, audit.GetStats).Routes(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		appLog.Info("", "", "gated listening", map[string]interface{}{"addr": cfg.ListenAddr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	appLog.Info("", "", "shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("", "", "server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := audit.Shutdown(ctx); err != nil {
		appLog.Error("", "", "audit queue shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
