package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estore/api/internal/auth"
	"estore/api/internal/model"
)

const secret = "test-secret"

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) }
}

func TestAuthAndGuards(t *testing.T) {
	userTok, _ := auth.IssueToken(secret, "u1", model.RoleUser, time.Hour, time.Now())
	adminTok, _ := auth.IssueToken(secret, "adm", model.RoleAdmin, time.Hour, time.Now())
	foreignTok, _ := auth.IssueToken("other", "u1", model.RoleAdmin, time.Hour, time.Now())

	var seen model.Actor
	record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	userOnly := Auth(secret)(RequireUser(status(http.StatusUnauthorized))(record))
	adminOnly := Auth(secret)(RequireAdmin(status(http.StatusUnauthorized), status(http.StatusForbidden))(record))

	tests := []struct {
		name      string
		handler   http.Handler
		header    string
		want      int
		wantActor model.Actor
	}{
		{"user route, no token", userOnly, "", http.StatusUnauthorized, model.Actor{}},
		{"user route, user token", userOnly, "Bearer " + userTok, http.StatusOK, model.Actor{UserID: "u1", Role: model.RoleUser}},
		{"user route, foreign signature", userOnly, "Bearer " + foreignTok, http.StatusUnauthorized, model.Actor{}},
		{"user route, wrong scheme", userOnly, "Token " + userTok, http.StatusUnauthorized, model.Actor{}},
		{"admin route, user token", adminOnly, "Bearer " + userTok, http.StatusForbidden, model.Actor{}},
		{"admin route, admin token", adminOnly, "Bearer " + adminTok, http.StatusOK, model.Actor{UserID: "adm", Role: model.RoleAdmin}},
		{"admin route, no token", adminOnly, "", http.StatusUnauthorized, model.Actor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = model.Actor{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if seen != tt.wantActor {
				t.Errorf("actor = %+v, want %+v", seen, tt.wantActor)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://loja.estore.com"})(status(http.StatusOK))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "https://loja.estore.com", http.StatusOK, "https://loja.estore.com"},
		{"unknown origin", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "https://loja.estore.com", http.StatusNoContent, "https://loja.estore.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}
