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
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HMAC-signed bearer tokens and maps their claims
// to an Identity. It is the default IdentityVerifier; deployments with
// an external identity provider supply their own.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a verifier for tokens signed with the secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify parses and validates the credential. The "Bearer " prefix is
// optional. Claims: sub (user id, required), tier, capabilities.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if raw == "" {
		return nil, ErrInvalidCredential
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredential
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidCredential)
	}

	identity := &Identity{UserID: sub, Tier: TierFree}
	if tier, ok := claims["tier"].(string); ok && tier != "" {
		identity.Tier = Tier(tier)
	}
	if caps, ok := claims["capabilities"].([]interface{}); ok {
		for _, c := range caps {
			if s, ok := c.(string); ok {
				identity.Capabilities = append(identity.Capabilities, s)
			}
		}
	}
	return identity, nil
}
