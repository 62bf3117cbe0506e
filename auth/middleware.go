package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hassan3xl/taxation-backend/generic"
)

type contextKey string

const ActorContextKey contextKey = "actor"

// Middleware validates bearer tokens on incoming requests.
type Middleware struct {
	service *Service
}

func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// Authenticate rejects requests without a valid token and stores the actor
// in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractTokenFromHeader(r.Header.Get("Authorization"))
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, ErrMissingToken)
			return
		}

		actor, err := m.service.ValidateToken(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole allows the given roles. Admins always pass.
func (m *Middleware) RequireRole(roles ...generic.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			if actor.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, generic.ErrPermissionDenied)
		})
	}
}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor generic.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// ActorFromContext extracts the authenticated actor.
func ActorFromContext(ctx context.Context) (generic.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(generic.Actor)
	return actor, ok
}

func writeAuthError(w http.ResponseWriter, status int, err error) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
}
