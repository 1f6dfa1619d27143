package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymcheckin/internal/delivery/http/helpers"
	"gymcheckin/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenVerifier implements domain.TokenVerifier for tests.
type fakeTokenVerifier struct {
	subject string
	err     error
}

func (f *fakeTokenVerifier) Verify(_ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.subject, nil
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	tests := []struct {
		name          string
		authHeader    string
		verifier      domain.TokenVerifier
		wantStatus    int
		wantBodyCode  string
		nextCalled    bool
		wantContextID string
		wantChallenge string
	}{
		{
			name:          "valid token sets context and calls next",
			authHeader:    "Bearer valid-token",
			verifier:      &fakeTokenVerifier{subject: "kiosk-front-door"},
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "kiosk-front-door",
		},
		{
			name:          "missing authorization header",
			authHeader:    "",
			verifier:      &fakeTokenVerifier{subject: "kiosk-front-door"},
			wantStatus:    http.StatusUnauthorized,
			wantBodyCode:  helpers.ErrCodeUnauthorized,
			nextCalled:    false,
			wantChallenge: `Bearer realm="gymcheckin"`,
		},
		{
			name:         "invalid authorization format no Bearer prefix",
			authHeader:   "Basic abc",
			verifier:     &fakeTokenVerifier{subject: "kiosk-front-door"},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
			nextCalled:   false,
		},
		{
			name:         "empty token after Bearer",
			authHeader:   "Bearer ",
			verifier:     &fakeTokenVerifier{subject: "kiosk-front-door"},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
			nextCalled:   false,
		},
		{
			name:         "verifier returns error",
			authHeader:   "Bearer bad-token",
			verifier:      &fakeTokenVerifier{err: errors.New("invalid or expired token")},
			wantStatus:    http.StatusUnauthorized,
			wantBodyCode:  helpers.ErrCodeUnauthorized,
			nextCalled:    false,
			wantChallenge: `Bearer realm="gymcheckin", error="invalid_token"`,
		},
		{
			name:          "lowercase scheme is accepted",
			authHeader:    "bearer valid-token",
			verifier:      &fakeTokenVerifier{subject: "operator-7"},
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "operator-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			var capturedSubject string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				id, ok := SubjectFromContext(r.Context())
				if ok {
					capturedSubject = id
				}
				w.WriteHeader(http.StatusOK)
			})
			wrap := RequireAuth(tt.verifier, logger)
			handler := wrap(next)

			req := httptest.NewRequest(http.MethodGet, "http://test/attendance/presence", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			handler(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			assert.Equal(t, tt.nextCalled, nextCalled, "next handler called")
			if tt.nextCalled && tt.wantContextID != "" {
				assert.Equal(t, tt.wantContextID, capturedSubject, "subject in context")
			}
			if tt.wantChallenge != "" {
				assert.Equal(t, tt.wantChallenge, rr.Header().Get("WWW-Authenticate"))
			}
			if tt.wantStatus != http.StatusOK && tt.wantBodyCode != "" {
				var envelope helpers.APIResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
				require.NotNil(t, envelope.Error)
				assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
			}
		})
	}
}
