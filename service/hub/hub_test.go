package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"callbridge/tools/errs"
)

// wsTestServer upgrades every request and attaches the connection to h for
// the user named in the ?uid= query. Gorilla hijacks the connection, so the
// handler returning does not tear it down.
func wsTestServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var uid int64
		fmt.Sscan(r.URL.Query().Get("uid"), &uid)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Attach(uid, ws)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialChannel(t *testing.T, srv *httptest.Server, uid int64) *websocket.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http://", "ws://", 1) + fmt.Sprintf("/?uid=%d", uid)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func TestSendDeliversInOrder(t *testing.T) {
	h := New(nil)
	defer h.Close()
	srv := wsTestServer(t, h)
	client := dialChannel(t, srv, 7)

	for i := 0; i < 5; i++ {
		payload, _ := json.Marshal(map[string]int{"seq": i})
		if err := h.Send(7, Event{Type: EventChat, From: 1, To: 7, Payload: payload}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		ev := readEvent(t, client)
		var body struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(ev.Payload, &body); err != nil {
			t.Fatal(err)
		}
		if ev.Type != EventChat || body.Seq != i {
			t.Fatalf("frame %d out of order: type=%s seq=%d", i, ev.Type, body.Seq)
		}
	}
}

func TestSendWithoutChannelFailsFast(t *testing.T) {
	h := New(nil)
	err := h.Send(99, NewEvent(EventChat, 1, 99, nil))
	if !errors.Is(err, errs.ErrPresenceExpired) {
		t.Fatalf("want PresenceExpired, got %v", err)
	}
}

func TestAttachReplacesPriorChannel(t *testing.T) {
	h := New(nil)
	defer h.Close()
	srv := wsTestServer(t, h)

	first := dialChannel(t, srv, 7)
	// give the first attach a moment to land before the second displaces it
	waitConnected(t, h, 7)
	second := dialChannel(t, srv, 7)

	ev := readEvent(t, first)
	if ev.Type != EventReplaced {
		t.Fatalf("old holder should learn it was displaced, got %s", ev.Type)
	}
	// the old connection is closed shortly after
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("replaced connection should be closed")
	}

	// events now flow to the new channel only
	if err := h.Send(7, NewEvent(EventChat, 1, 7, nil)); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, second); ev.Type != EventChat {
		t.Fatalf("new channel got %s", ev.Type)
	}
}

func TestStaleDetachKeepsSuccessor(t *testing.T) {
	h := New(nil)
	defer h.Close()
	srv := wsTestServer(t, h)

	dialChannel(t, srv, 7)
	waitConnected(t, h, 7)
	h.mgr.mu.RLock()
	old := h.mgr.byUser[7]
	h.mgr.mu.RUnlock()

	dialChannel(t, srv, 7)
	waitReplaced(t, h, 7, old)

	// the displaced connection's deferred detach fires late
	h.Detach(7, old)
	if !h.IsConnected(7) {
		t.Fatal("late detach of a replaced channel must not remove its successor")
	}
}

type captureRelay struct {
	userID int64
	ev     Event
	calls  int
}

func (r *captureRelay) Publish(userID int64, ev Event) error {
	r.userID, r.ev, r.calls = userID, ev, r.calls+1
	return nil
}

func TestSendFallsBackToRelay(t *testing.T) {
	relay := &captureRelay{}
	h := New(relay)

	if err := h.Send(42, NewEvent(EventOffer, 1, 42, nil)); err != nil {
		t.Fatalf("relay accepted it, send should succeed: %v", err)
	}
	if relay.calls != 1 || relay.userID != 42 || relay.ev.Type != EventOffer {
		t.Fatalf("relay saw %+v", relay)
	}

	// SendLocal must never bounce through the relay
	if err := h.SendLocal(42, NewEvent(EventOffer, 1, 42, nil)); err == nil {
		t.Fatal("no local channel, SendLocal must fail")
	}
	if relay.calls != 1 {
		t.Fatal("SendLocal leaked to the relay")
	}
}

func waitConnected(t *testing.T, h *Hub, uid int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.IsConnected(uid) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %d never attached", uid)
}

func waitReplaced(t *testing.T, h *Hub, uid int64, old *Channel) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mgr.mu.RLock()
		cur := h.mgr.byUser[uid]
		h.mgr.mu.RUnlock()
		if cur != nil && cur != old {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %d channel never replaced", uid)
}
