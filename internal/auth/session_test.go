package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T, parties ...string) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, "https://clerk.snapgram.test", parties)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", "", nil); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user_2abc", "http://localhost:5173", time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user_2abc" {
		t.Errorf("Validate() subject = %q, want %q", got, "user_2abc")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t, "https://snapgram.example.com")

	other, err := NewTokenService("another-secret-16-chars", "https://clerk.snapgram.test", nil)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	wrongIssuer, err := NewTokenService(testSecret, "https://evil.example.com", nil)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	mint := func(t *testing.T, s *TokenService, sub, azp string, ttl time.Duration) string {
		t.Helper()
		tok, err := s.Generate(sub, azp, ttl)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		return tok
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"expired", func(t *testing.T) string {
			return mint(t, ts, "user_1", "https://snapgram.example.com", -time.Second)
		}},
		{"wrong secret", func(t *testing.T) string {
			return mint(t, other, "user_1", "https://snapgram.example.com", time.Minute)
		}},
		{"wrong issuer", func(t *testing.T) string {
			return mint(t, wrongIssuer, "user_1", "https://snapgram.example.com", time.Minute)
		}},
		{"unauthorized party", func(t *testing.T) string {
			return mint(t, ts, "user_1", "https://phishing.example.com", time.Minute)
		}},
		{"no subject", func(t *testing.T) string {
			return mint(t, ts, "", "https://snapgram.example.com", time.Minute)
		}},
		{"tampered", func(t *testing.T) string {
			tok := mint(t, ts, "user_1", "https://snapgram.example.com", time.Minute)
			return tok[:len(tok)-2] + "xx"
		}},
		{"garbage", func(t *testing.T) string { return "not.a.jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token(t)); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

// =========================================================================
// MIDDLEWARE TESTS
// =========================================================================

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	valid, err := ts.Generate("user_2abc", "", time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAuth(ts)(next)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantID     string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusNoContent, "user_2abc"},
		{"session cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: valid}) }, http.StatusNoContent, "user_2abc"},
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/posts", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if seen != tt.wantID {
				t.Errorf("identity = %q, want %q", seen, tt.wantID)
			}
			if tt.wantStatus == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "unauthorized") {
				t.Errorf("body = %q, want an unauthorized error", rec.Body.String())
			}
		})
	}
}

func TestRequireAuth_DisabledPassesThrough(t *testing.T) {
	called := false
	h := RequireAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Error("disabled auth should not set an identity")
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("handler was not called")
	}
}
