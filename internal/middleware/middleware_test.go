package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mapveto/internal/auth"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddleware_RecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/veto/sessions/x", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/veto/sessions/x", entry.Data["path"])
}

func TestLogMiddleware_ServerErrorsWarn(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAuthenticate(t *testing.T) {
	require.NoError(t, auth.Init(0))
	team := uuid.New()
	tok, err := auth.CreateJWT("u1", team, false)
	require.NoError(t, err)

	var got auth.Claims
	var present bool
	h := Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = ClaimsFrom(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.False(t, present)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, present)
	assert.Equal(t, team, got.TeamID)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	ok := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		claims *auth.Claims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"team member", &auth.Claims{UserID: "u", TeamID: uuid.New()}, http.StatusForbidden},
		{"admin", &auth.Claims{UserID: "a", Admin: true}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", nil)
			if tt.claims != nil {
				r = r.WithContext(WithClaims(r.Context(), *tt.claims))
			}
			w := httptest.NewRecorder()
			ok.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
