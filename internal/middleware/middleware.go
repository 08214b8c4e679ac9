// Package middleware resolves the caller's identity from the bearer token
// and guards routes by role.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"estore/api/internal/auth"
	"estore/api/internal/model"
)

type ctxKey int

const actorKey ctxKey = iota

// Auth parses an optional "Authorization: Bearer" token. Requests without a
// valid token pass through anonymous; RequireUser rejects them later.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if ok && token != "" {
				if claims, err := auth.ParseToken(secret, token); err == nil {
					actor := model.Actor{UserID: claims.Subject, Role: claims.Role}
					r = r.WithContext(WithActor(r.Context(), actor))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor stores the caller identity in ctx.
func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom returns the caller identity; the zero Actor means anonymous.
func ActorFrom(ctx context.Context) model.Actor {
	a, _ := ctx.Value(actorKey).(model.Actor)
	return a
}

// UserID retorna o id do usuário autenticado ou "".
func UserID(ctx context.Context) string {
	return ActorFrom(ctx).UserID
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(onDenied http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserID(r.Context()) == "" {
				onDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects non-admin callers. Anonymous callers get
// onAnonymous, authenticated ones onForbidden.
func RequireAdmin(onAnonymous, onForbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := ActorFrom(r.Context())
			switch {
			case a.UserID == "":
				onAnonymous(w, r)
			case !a.IsAdmin():
				onForbidden(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// CORS allows the configured origins. "*" allows any.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Webhook-Signature")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
