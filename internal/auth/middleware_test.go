package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLocalhostBypassRunsAsAdmin(t *testing.T) {
	ring := &Keyring{AllowLocalhostWithoutAuth: true, keyToRole: map[string]Role{}}
	mw := Middleware(ring)

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := FromContext(r.Context())
		if !ok || info.Mode != ModeLocalhost || info.Role != RoleAdmin {
			t.Fatalf("expected localhost admin, got %+v ok=%v", info, ok)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestNonLocalhostRequiresBearer(t *testing.T) {
	ring := &Keyring{AllowLocalhostWithoutAuth: true, keyToRole: map[string]Role{"secret": RoleGuardian}}
	mw := Middleware(ring)

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := FromContext(r.Context())
		if !ok || info.Role != RoleGuardian || info.Mode != ModeAPIKey {
			t.Fatalf("expected guardian apikey info, got %+v", info)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "203.0.113.10:9999"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "203.0.113.10:9999"
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong bearer, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "203.0.113.10:9999"
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer, got %d", rr.Code)
	}
}

func TestForwardedForDefeatsBypass(t *testing.T) {
	ring := &Keyring{AllowLocalhostWithoutAuth: true, keyToRole: map[string]Role{}}
	mw := Middleware(ring)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A proxied external client must not inherit the localhost bypass.
	req := httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forwarded external client, got %d", rr.Code)
	}
}

func TestBypassDisabled(t *testing.T) {
	ring := &Keyring{AllowLocalhostWithoutAuth: false, keyToRole: map[string]Role{}}
	mw := Middleware(ring)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when bypass disabled, got %d", rr.Code)
	}
}

func TestRoleOrdering(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleGuardian) || !RoleGuardian.AtLeast(RoleMember) {
		t.Fatalf("role ordering broken")
	}
	if RoleMember.AtLeast(RoleGuardian) || RoleGuardian.AtLeast(RoleAdmin) {
		t.Fatalf("lower roles must not satisfy higher requirements")
	}
}
