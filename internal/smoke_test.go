package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maddasher/titlebot/internal/auth"
	"github.com/maddasher/titlebot/internal/engine"
	httpapi "github.com/maddasher/titlebot/internal/http"
	"github.com/maddasher/titlebot/internal/storage/sqlite"
	"github.com/maddasher/titlebot/internal/ws"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// readEvent skips frames until one of the wanted type arrives, so the
// test is robust to log-style extras in the stream.
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	for {
		var event map[string]any
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			t.Fatalf("ws read waiting for %s: %v", wantType, err)
		}
		if event["type"] == wantType {
			return event
		}
	}
}

// TestSmokeHandoffFlow exercises the full lifecycle over a real server:
// import title → connect WS → claim → verify events → queue a second
// claimant → release → see the title go due → guardian ack → verify
// the successor holds and the audit trail recorded it all.
func TestSmokeHandoffFlow(t *testing.T) {
	st, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer st.Close()

	eng, err := engine.New(st, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	hub := ws.NewHub()
	eng.WithNotifier(hub)

	svc := httpapi.NewService(eng)
	srv := httptest.NewServer(httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(nil)))
	defer srv.Close()

	// 1. Import the title.
	impResp := postJSON(t, srv.URL+"/api/titles", map[string]any{
		"titles": []map[string]string{{"name": "Governor", "description": "keeps the lights on"}},
	})
	if impResp.StatusCode != http.StatusOK {
		t.Fatalf("import: %d", impResp.StatusCode)
	}
	imp := decode[map[string]any](t, impResp)
	if created := imp["created"].([]any); len(created) != 1 {
		t.Fatalf("expected one created title, got %v", created)
	}

	// 2. Connect the event stream.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// 3. Alice claims the vacant title.
	claimResp := postJSON(t, srv.URL+"/api/titles/Governor/claim", map[string]string{"user": "alice"})
	if claimResp.StatusCode != http.StatusOK {
		t.Fatalf("claim: %d", claimResp.StatusCode)
	}
	claim := decode[map[string]any](t, claimResp)
	if claim["result"] != "held" {
		t.Fatalf("expected held, got %v", claim["result"])
	}

	// 4. The claim shows up on the stream as a holder change.
	event := readEvent(ctx, t, conn, "holder.changed")
	if event["title"] != "Governor" || event["next"] != "alice" {
		t.Fatalf("unexpected holder change: %v", event)
	}

	// 5. Bob queues up behind alice.
	queueResp := postJSON(t, srv.URL+"/api/titles/Governor/claim", map[string]string{"user": "bob"})
	queued := decode[map[string]any](t, queueResp)
	if queued["result"] != "queued" || queued["position"].(float64) != 1 {
		t.Fatalf("expected queued at 1, got %v", queued)
	}

	// 6. Alice releases; with bob waiting the title goes due.
	relResp := postJSON(t, srv.URL+"/api/titles/Governor/release", map[string]string{"user": "alice"})
	rel := decode[map[string]any](t, relResp)
	if rel["status"] != "due" || rel["holder"] != "alice" {
		t.Fatalf("expected due with alice retained, got %v", rel)
	}
	event = readEvent(ctx, t, conn, "notification")
	if event["kind"] != "due" || event["next_holder"] != "bob" {
		t.Fatalf("expected due notification for bob, got %v", event)
	}

	// 7. Guardian confirms the handoff; bob takes the slot.
	ackResp := postJSON(t, srv.URL+"/api/titles/Governor/ack", map[string]string{"actor": "guardian"})
	if ackResp.StatusCode != http.StatusOK {
		t.Fatalf("ack: %d", ackResp.StatusCode)
	}
	acked := decode[map[string]any](t, ackResp)
	if acked["status"] != "held" || acked["holder"] != "bob" {
		t.Fatalf("expected bob holding after ack, got %v", acked)
	}

	event = readEvent(ctx, t, conn, "holder.changed")
	if event["prev"] != "alice" || event["next"] != "bob" {
		t.Fatalf("unexpected handoff event: %v", event)
	}

	// 8. The audit trail recorded the whole episode, newest first.
	histResp := getJSON(t, srv.URL+"/api/titles/Governor/history")
	hist := decode[map[string]any](t, histResp)
	records := hist["records"].([]any)
	if len(records) < 4 {
		t.Fatalf("expected at least 4 audit records, got %d", len(records))
	}
	newest := records[0].(map[string]any)
	if newest["action"] != "acknowledged" {
		t.Fatalf("expected acknowledged on top, got %v", newest["action"])
	}

	// 9. Bob's holdings reflect the new state.
	holdResp := getJSON(t, srv.URL+"/api/holders/bob")
	hold := decode[map[string]any](t, holdResp)
	holdings := hold["holdings"].([]any)
	if len(holdings) != 1 || holdings[0].(map[string]any)["held"] != true {
		t.Fatalf("expected bob to hold one title, got %v", holdings)
	}
}
