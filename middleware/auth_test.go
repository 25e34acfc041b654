package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

type resolverFunc func(ctx context.Context, credential string) (models.Actor, error)

func (f resolverFunc) Resolve(ctx context.Context, credential string) (models.Actor, error) {
	return f(ctx, credential)
}

func TestAuth(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, credential string) (models.Actor, error) {
		switch credential {
		case "good":
			return models.Actor{UserID: "u1", Role: models.RoleStudent, IsActive: true}, nil
		case "flaky":
			return models.Actor{}, circulation.StoreFailure(context.DeadlineExceeded)
		default:
			return models.Actor{}, circulation.Forbidden(circulation.ErrUnauthorized, "")
		}
	})
	var seen models.Actor
	h := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		seen = actor
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token good", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer flaky", http.StatusServiceUnavailable},
		{"Bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "u1", seen.UserID)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	CORS(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/loans", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code, "preflight stops here")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	h := CORS([]string{"https://desk.example.org"})(next)
	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	req.Header.Set("Origin", "https://desk.example.org")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://desk.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.org")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
