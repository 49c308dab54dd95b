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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const identityContextKey contextKey = "gatekeeper.identity"

// IdentityFromContext returns the verified identity the middleware
// attached, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}

// maxBufferedBody bounds how much request body the middleware reads for
// scanning and validation.
const maxBufferedBody = 4 << 20

// Middleware enforces the pipeline in front of an http.Handler. Denied
// requests get the decision as a JSON response with the decision's
// status code; allowed requests continue with the verified identity in
// the context and the body rewound for the next handler.
func Middleware(p *Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := fromHTTP(r)
			decision := p.CheckRequest(r.Context(), &req)
			if !decision.Allowed {
				writeJSON(w, decision.HTTPStatus, decision)
				return
			}

			ctx := r.Context()
			if req.Identity != nil {
				ctx = context.WithValue(ctx, identityContextKey, req.Identity)
			}
			r.Body = io.NopCloser(bytes.NewReader([]byte(req.Body)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// fromHTTP builds a pipeline request descriptor from an HTTP request.
// The body is buffered so threat scanning and the downstream handler
// both see it.
func fromHTTP(r *http.Request) Request {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(r.Body, maxBufferedBody))
		r.Body.Close()
	}

	var fields map[string]interface{}
	if len(body) > 0 {
		// Non-JSON bodies still get scanned as raw text.
		json.Unmarshal(body, &fields)
	}

	sourceAddr := r.Header.Get("X-Forwarded-For")
	if sourceAddr == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			sourceAddr = host
		} else {
			sourceAddr = r.RemoteAddr
		}
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	size := r.ContentLength
	if size < 0 {
		size = int64(len(body))
	}

	return Request{
		RequestID:  requestID,
		Path:       r.URL.Path,
		Method:     r.Method,
		SourceAddr: sourceAddr,
		Credential: r.Header.Get("Authorization"),
		Query:      r.URL.RawQuery,
		Body:       string(body),
		Fields:     fields,
		SizeBytes:  size,
	}
}
