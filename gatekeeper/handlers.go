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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"aegisgate/pipeline/shared/logger"
)

// AdminServer exposes the pipeline's operational surface: decision
// dry-runs, incident management, and block list administration.
type AdminServer struct {
	pipeline *Pipeline
	stats    func() AuditStats
	log      *logger.Logger
}

// NewAdminServer builds the admin surface. stats may be nil when no
// audit queue is wired.
func NewAdminServer(p *Pipeline, stats func() AuditStats) *AdminServer {
	return &AdminServer{pipeline: p, stats: stats, log: logger.New("admin-api")}
}

// Routes registers the admin endpoints on a router.
func (s *AdminServer) Routes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/check", s.handleCheck).Methods(http.MethodPost)
	r.HandleFunc("/v1/check/ai", s.handleCheckAI).Methods(http.MethodPost)
	r.HandleFunc("/v1/incidents", s.handleListIncidents).Methods(http.MethodGet)
	r.HandleFunc("/v1/incidents/{id}/acknowledge", s.handleAcknowledge).Methods(http.MethodPost)
	r.HandleFunc("/v1/incidents/{id}/resolve", s.handleResolve).Methods(http.MethodPost)
	r.HandleFunc("/v1/blocklist", s.handleListBlocked).Methods(http.MethodGet)
	r.HandleFunc("/v1/blocklist", s.handleBlock).Methods(http.MethodPost)
	r.HandleFunc("/v1/blocklist/{identity}", s.handleUnblock).Methods(http.MethodDelete)
	r.HandleFunc("/v1/stats", s.handleStats).Methods(http.MethodGet)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type checkPayload struct {
	Path       string                 `json:"path"`
	Method     string                 `json:"method"`
	SourceAddr string                 `json:"source_addr"`
	Credential string                 `json:"credential"`
	Query      string                 `json:"query"`
	Body       string                 `json:"body"`
	Fields     map[string]interface{} `json:"fields"`
	SizeBytes  int64                  `json:"size_bytes"`

	Operation     string  `json:"operation,omitempty"`
	Text          string  `json:"text,omitempty"`
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
}

// handleCheck evaluates a request descriptor without forwarding it
// anywhere. The decision, side effects included, is real.
func (s *AdminServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	var payload checkPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	req := payload.toRequest()
	decision := s.pipeline.CheckRequest(r.Context(), &req)
	writeJSON(w, http.StatusOK, decision)
}

func (s *AdminServer) handleCheckAI(w http.ResponseWriter, r *http.Request) {
	var payload checkPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	aiReq := AIRequest{
		Request:       payload.toRequest(),
		Operation:     payload.Operation,
		Text:          payload.Text,
		EstimatedCost: payload.EstimatedCost,
	}
	decision := s.pipeline.CheckAIRequest(r.Context(), &aiReq)
	writeJSON(w, http.StatusOK, decision)
}

func (p checkPayload) toRequest() Request {
	return Request{
		Path:       p.Path,
		Method:     p.Method,
		SourceAddr: p.SourceAddr,
		Credential: p.Credential,
		Query:      p.Query,
		Body:       p.Body,
		Fields:     p.Fields,
		SizeBytes:  p.SizeBytes,
	}
}

func (s *AdminServer) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": s.pipeline.Coordinator().ActiveIncidents(),
	})
}

func (s *AdminServer) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.pipeline.Coordinator().Acknowledge(id); err != nil {
		writeIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "acknowledged"})
}

func (s *AdminServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Note == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resolution note required"})
		return
	}
	if err := s.pipeline.Coordinator().Resolve(r.Context(), id, body.Note); err != nil {
		writeIncidentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

func (s *AdminServer) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocked": s.pipeline.Threats().BlockedIdentities(),
	})
}

func (s *AdminServer) handleBlock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identity == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "identity required"})
		return
	}
	if body.Reason == "" {
		body.Reason = "administrative block"
	}
	s.pipeline.BlockIdentity(body.Identity, body.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"identity": body.Identity, "status": "blocked"})
}

func (s *AdminServer) handleUnblock(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	s.pipeline.UnblockIdentity(identity)
	writeJSON(w, http.StatusOK, map[string]string{"identity": identity, "status": "unblocked"})
}

func (s *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"blocked_identities": len(s.pipeline.Threats().BlockedIdentities()),
		"open_incidents":     len(s.pipeline.Coordinator().ActiveIncidents()),
	}
	if s.stats != nil {
		out["audit"] = s.stats()
	}
	writeJSON(w, http.StatusOK, out)
}

func writeIncidentError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrIncidentNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
