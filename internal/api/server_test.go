package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sendkeys/internal/config"
	"sendkeys/internal/input"
	"sendkeys/internal/protocol"

	"github.com/gorilla/websocket"
)

type sentKey struct {
	vk    uint8
	flags uint32
}

// recordingSystem is an in-memory keyboard that records injected events
type recordingSystem struct {
	mu      sync.Mutex
	keys    [256]byte
	sent     []sentKey
	sendErr  error
	stateErr error
}

func (r *recordingSystem) MapVirtualKey(vk uint8) uint16 { return uint16(vk) }

func (r *recordingSystem) SendKey(vk uint8, scan uint16, flags uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, sentKey{vk: vk, flags: flags})
	if vk == input.VKNumLock && flags&input.FlagKeyUp != 0 {
		r.keys[input.VKNumLock] ^= 0x1
	}
	return nil
}

func (r *recordingSystem) KeyboardState() ([256]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stateErr != nil {
		return r.keys, r.stateErr
	}
	return r.keys, nil
}

func (r *recordingSystem) events() []sentKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentKey(nil), r.sent...)
}

func newTestServer(sys input.System, token string) *Server {
	return NewServer(input.NewBridge(sys, input.Options{}), config.APIConfig{Token: token}, false)
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, protocol.Result) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res protocol.Result
	if rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusUnauthorized {
		if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&res); err != nil {
			t.Fatalf("Failed to decode result %q: %v", rec.Body.String(), err)
		}
	}
	return rec, res
}

func TestKeyDownUp(t *testing.T) {
	sys := &recordingSystem{}
	h := newTestServer(sys, "").Handler()

	rec, res := post(t, h, "/api/key_down", `{"args":[65]}`)
	if rec.Code != http.StatusOK || !res.OK() {
		t.Fatalf("key_down failed: %d %+v", rec.Code, res)
	}
	if res.Value != nil {
		t.Errorf("Expected no value for key_down, got %d", *res.Value)
	}

	rec, res = post(t, h, "/api/key_up", `{"args":[65]}`)
	if rec.Code != http.StatusOK || !res.OK() {
		t.Fatalf("key_up failed: %d %+v", rec.Code, res)
	}

	want := []sentKey{{vk: 65}, {vk: 65, flags: input.FlagKeyUp}}
	got := sys.events()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected events %+v, got %+v", want, got)
	}
}

func TestToggleNumLockReturnsPriorState(t *testing.T) {
	sys := &recordingSystem{}
	h := newTestServer(sys, "").Handler()

	_, res := post(t, h, "/api/toggle_numlock", `{"args":[1]}`)
	if !res.OK() || res.Value == nil || *res.Value != 0 {
		t.Fatalf("Expected prior state 0, got %+v", res)
	}

	_, res = post(t, h, "/api/toggle_numlock", `{"args":[5]}`)
	if !res.OK() || res.Value == nil || *res.Value != 1 {
		t.Fatalf("Expected prior state 1, got %+v", res)
	}
	if len(sys.events()) != 2 {
		t.Errorf("Expected no events for a no-op toggle, got %d total", len(sys.events()))
	}

	_, res = post(t, h, "/api/call", `{"id":3,"op":"toggle_numlock","args":[0]}`)
	if !res.OK() || res.ID != 3 || *res.Value != 1 {
		t.Fatalf("Expected prior state 1 with id 3, got %+v", res)
	}
	if len(sys.events()) != 4 {
		t.Errorf("Expected 4 events, got %d", len(sys.events()))
	}
}

func TestArgumentErrors(t *testing.T) {
	sys := &recordingSystem{}
	h := newTestServer(sys, "").Handler()

	bodies := []string{
		`{"args":["a"]}`,
		`{"args":[]}`,
		`{"args":[1,2]}`,
		`{"args":[1.5]}`,
		`{"args":`,
	}
	for _, path := range []string{"/api/key_down", "/api/key_up", "/api/toggle_numlock"} {
		for _, body := range bodies {
			rec, res := post(t, h, path, body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s %s: expected 400, got %d", path, body, rec.Code)
			}
			if res.Kind != protocol.KindArgument {
				t.Errorf("%s %s: expected argument kind, got %q", path, body, res.Kind)
			}
		}
	}

	if n := len(sys.events()); n != 0 {
		t.Errorf("Expected no events after argument errors, got %d", n)
	}
}

func TestRangeError(t *testing.T) {
	sys := &recordingSystem{}
	h := newTestServer(sys, "").Handler()

	rec, res := post(t, h, "/api/key_down", `{"args":[256]}`)
	if rec.Code != http.StatusBadRequest || res.Kind != protocol.KindRange {
		t.Errorf("Expected 400 range error, got %d %+v", rec.Code, res)
	}
	if n := len(sys.events()); n != 0 {
		t.Errorf("Expected no events, got %d", n)
	}
}

func TestOSErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   protocol.ErrorKind
	}{
		{input.ErrInjectFailed, http.StatusBadGateway, protocol.KindOS},
		{input.ErrUnsupported, http.StatusNotImplemented, protocol.KindUnsupported},
	}
	for _, tt := range tests {
		h := newTestServer(&recordingSystem{sendErr: tt.err}, "").Handler()
		rec, res := post(t, h, "/api/key_up", `{"args":[13]}`)
		if rec.Code != tt.status || res.Kind != tt.kind {
			t.Errorf("%v: expected %d/%s, got %d/%s", tt.err, tt.status, tt.kind, rec.Code, res.Kind)
		}
	}
}

func TestStateError(t *testing.T) {
	h := newTestServer(&recordingSystem{stateErr: input.ErrStateUnavailable}, "").Handler()

	rec, res := post(t, h, "/api/toggle_numlock", `{"args":[1]}`)
	if rec.Code != http.StatusBadGateway || res.Kind != protocol.KindState {
		t.Errorf("Expected 502 state error, got %d %+v", rec.Code, res)
	}
}

func TestUnknownOp(t *testing.T) {
	h := newTestServer(&recordingSystem{}, "").Handler()

	rec, res := post(t, h, "/api/call", `{"op":"type_text","args":[1]}`)
	if rec.Code != http.StatusNotFound || res.Kind != protocol.KindArgument {
		t.Errorf("Expected 404 argument error, got %d %+v", rec.Code, res)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(&recordingSystem{}, "").Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/key_down", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	sys := &recordingSystem{}
	h := newTestServer(sys, "secret").Handler()

	rec, _ := post(t, h, "/api/key_down", `{"args":[65]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/key_down", strings.NewReader(`{"args":[65]}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected health check to skip auth, got %d", rec.Code)
	}
}

func TestWebSocketCalls(t *testing.T) {
	sys := &recordingSystem{}
	srv := newTestServer(sys, "secret")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer secret"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	calls := []string{
		`{"id":1,"op":"key_down","args":[16]}`,
		`{"id":2,"op":"key_up","args":[16]}`,
		`{"id":3,"op":"toggle_numlock","args":[1]}`,
		`{"id":4,"op":"key_down","args":["x"]}`,
		`not json`,
	}
	for _, c := range calls {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	results := make([]protocol.Result, len(calls))
	for i := range results {
		if err := conn.ReadJSON(&results[i]); err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		if results[i].ID != uint64(i+1) || !results[i].OK() {
			t.Errorf("Result %d: unexpected %+v", i, results[i])
		}
	}
	if results[2].Value == nil || *results[2].Value != 0 {
		t.Errorf("Expected prior NumLock state 0, got %+v", results[2])
	}
	if results[3].ID != 4 || results[3].Kind != protocol.KindArgument {
		t.Errorf("Expected argument error for call 4, got %+v", results[3])
	}
	if results[4].Kind != protocol.KindArgument {
		t.Errorf("Expected argument error for malformed frame, got %+v", results[4])
	}

	got := sys.events()
	if len(got) != 4 || got[0] != (sentKey{vk: 16}) || got[1] != (sentKey{vk: 16, flags: input.FlagKeyUp}) {
		t.Errorf("Unexpected events: %+v", got)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	ts := httptest.NewServer(newTestServer(&recordingSystem{}, "secret").Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 handshake response, got %v", resp)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	srv := newTestServer(&recordingSystem{}, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for srv.wsMgr.count() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection to be closed after shutdown")
	}
}

// panicController fails every call by panicking
type panicController struct{}

func (panicController) KeyDown(vk int) error { panic("keyboard gone") }

func (panicController) KeyUp(vk int) error { panic("keyboard gone") }

func (panicController) ToggleNumLock(on bool) (bool, error) { panic("keyboard gone") }

func TestWebSocketRecoversFromPanic(t *testing.T) {
	srv := NewServer(panicController{}, config.APIConfig{}, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for id := uint64(1); id <= 2; id++ {
		call := protocol.NewCall(id, protocol.OpKeyDown, 65)
		if err := conn.WriteJSON(call); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		var res protocol.Result
		if err := conn.ReadJSON(&res); err != nil {
			t.Fatalf("Read %d failed: %v", id, err)
		}
		if res.ID != id || res.Kind != protocol.KindInternal {
			t.Errorf("Expected internal error for call %d, got %+v", id, res)
		}
	}
}
