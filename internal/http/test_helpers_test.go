package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maddasher/titlebot/internal/core"
	"github.com/maddasher/titlebot/internal/engine"
	"github.com/maddasher/titlebot/internal/storage"
	"github.com/maddasher/titlebot/internal/ws"
)

// testEnv bundles an engine + httptest.Server + ws.Hub for handler
// tests. No middleware, so every request passes auth.
type testEnv struct {
	srv   *httptest.Server
	hub   *ws.Hub
	eng   *engine.Engine
	store *storage.InMemory
}

func newTestEnv(t *testing.T, titles ...string) *testEnv {
	t.Helper()
	store := storage.NewInMemory()
	eng, err := engine.New(store, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	hub := ws.NewHub()
	eng.WithNotifier(hub)

	var defs []core.TitleDef
	for _, name := range titles {
		defs = append(defs, core.TitleDef{Name: name})
	}
	if len(defs) > 0 {
		if _, err := eng.ImportTitles(defs); err != nil {
			t.Fatalf("import: %v", err)
		}
	}

	svc := NewService(eng)
	srv := httptest.NewServer(NewRouter(svc, hub.Handler(), nil))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, hub: hub, eng: eng, store: store}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) put(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, e.srv.URL+path, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
