package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"roadwatch.mg/internal/auth"
)

const (
	authHeader  = "Authorization"
	tokenHeader = "X-Auth-Token"
	bearer      = "Bearer "
)

var publicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/api/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="roadwatch"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		id, err := a.tokens.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="roadwatch", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

// RequireRole rejects callers without role: 401 when anonymous, 403 otherwise.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireRole(w, r, role) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="roadwatch"`)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !auth.HasRole(r.Context(), role) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="roadwatch", error="insufficient_scope"`)
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return false
	}
	return true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	return requireRole(w, r, auth.RoleAdmin)
}

// extractToken accepts "Authorization: Bearer" and the legacy x-auth-token header.
func extractToken(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
			return "", errors.New("invalid authorization scheme")
		}
		token := strings.TrimSpace(header[len(bearer):])
		if token == "" {
			return "", errors.New("missing bearer token")
		}
		return token, nil
	}
	if token := strings.TrimSpace(r.Header.Get(tokenHeader)); token != "" {
		return token, nil
	}
	return "", errors.New("missing token")
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
