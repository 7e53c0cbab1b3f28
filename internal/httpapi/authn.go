package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"ballotbox.org/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
	"/v1/info": {},
}

// withAuth verifies the bearer identity assertion and attaches the verified
// {subject, roles} context. S2S routes are authenticated separately by
// requireS2S and bypass this middleware.
func withAuth(verifier *identity.Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := publicPaths[r.URL.Path]; ok || strings.HasPrefix(r.URL.Path, "/s2s/") {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication_failed", err.Error())
			return
		}
		id, err := verifier.Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication_failed", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.ContextWithIdentity(r.Context(), id)))
	})
}

// requireS2S gates the service-to-service surface with a static bearer token
// compared in constant time. Member assertions are not accepted here, and the
// S2S token is not accepted on member routes.
func requireS2S(s2sToken string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s2sToken == "" {
			writeError(w, r, http.StatusServiceUnavailable, "s2s_disabled", "s2s surface is not configured")
			return
		}
		presented, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "authentication_failed", err.Error())
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s2sToken)) != 1 {
			writeError(w, r, http.StatusUnauthorized, "authentication_failed", "invalid service token")
			return
		}
		next(w, r)
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
