/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blnkfinance/vault/internal/apierror"
	"github.com/blnkfinance/vault/internal/auth"
	"github.com/blnkfinance/vault/model"
)

const (
	AuthorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	principalKey        = "principal"
)

// TokenVerifier resolves a bearer token into the caller's identity.
type TokenVerifier interface {
	VerifyToken(raw string) (auth.Principal, error)
}

// AuthMiddleware gates routes behind a signed session token.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new instance of AuthMiddleware.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate reads the Authorization header, verifies the bearer token and
// stores the principal on the context.
//
// Responses:
// - 401 Unauthorized: When the token is missing, malformed, expired or forged.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, "Authentication required. Use Authorization: Bearer <token>")
			return
		}

		principal, err := m.verifier.VerifyToken(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole must run after Authenticate. A superadmin satisfies admin routes.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, "Authentication required")
			return
		}
		if !principal.Role.Satisfies(role) {
			abort(c, http.StatusForbidden, apierror.ErrForbidden, "Insufficient permissions for "+string(role)+" routes")
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the identity stored by Authenticate.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader(AuthorizationHeader)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

func abort(c *gin.Context, status int, code apierror.ErrorCode, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
