package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	h "gymcheckin/internal/delivery/http/helpers"
	"gymcheckin/internal/domain"
)

type contextKey string

const subjectKey contextKey = "subject"

// Realm is advertised in WWW-Authenticate on rejected requests.
const Realm = "gymcheckin"

// SetSubject returns a context carrying the authenticated operator or kiosk id.
func SetSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the authenticated subject, if present.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectKey).(string)
	return id, ok && id != ""
}

// bearerToken extracts the token of an RFC 6750 Authorization header. The
// scheme is case-insensitive. reason is set when no token could be read.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization format"
	}
	if token = strings.TrimSpace(rest); token == "" {
		return "", "missing token"
	}
	return token, ""
}

// RequireAuth admits requests carrying a Bearer token that verifier accepts
// and stores its subject (operator or kiosk device) in the request context.
// Anything else gets 401 with a WWW-Authenticate challenge.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				challenge(w, "", reason)
				return
			}
			subject, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				challenge(w, "invalid_token", "invalid or expired token")
				return
			}
			next(w, r.WithContext(SetSubject(r.Context(), subject)))
		}
	}
}

func challenge(w http.ResponseWriter, errCode, message string) {
	value := fmt.Sprintf("Bearer realm=%q", Realm)
	if errCode != "" {
		value += fmt.Sprintf(", error=%q", errCode)
	}
	w.Header().Set("WWW-Authenticate", value)
	h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, message)
}
