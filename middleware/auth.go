package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorResolver turns a bearer credential into an actor.
type ActorResolver interface {
	Resolve(ctx context.Context, credential string) (models.Actor, error)
}

// Auth resolves the bearer token on every request and stores the actor in
// the request context. Nothing is cached between requests.
func Auth(resolver ActorResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				jsonError(w, `{"error":"missing authorization header","kind":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				jsonError(w, `{"error":"invalid authorization format","kind":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			actor, err := resolver.Resolve(r.Context(), parts[1])
			if circulation.IsRetryable(err) {
				jsonError(w, `{"error":"store unavailable","kind":"store_unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if err != nil {
				jsonError(w, `{"error":"invalid or expired token","kind":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			ctx := WithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func jsonError(w http.ResponseWriter, body string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
