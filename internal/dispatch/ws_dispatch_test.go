package dispatch

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/tow-dispatch/internal/models"
)

func newTestServer(t *testing.T, reg *WSRegistry) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		reg.Add(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesEverySession(t *testing.T) {
	reg := NewWSRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := newTestServer(t, reg)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	var clients []*websocket.Conn
	for i := 0; i < 2; i++ {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer c.Close()
		clients = append(clients, c)
	}
	waitFor(t, func() bool { return reg.Len() == 2 })

	reg.OfferEvent(models.OfferEvent{Kind: models.EventCountdown, OfferID: "TT-2024-001", State: "PRESENTED", RemainingSeconds: 29})

	for _, c := range clients {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev models.OfferEvent
		if err := c.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.OfferID != "TT-2024-001" || ev.RemainingSeconds != 29 {
			t.Fatalf("event = %+v", ev)
		}
	}
}

func TestRemoveClosesSession(t *testing.T) {
	reg := NewWSRegistry(nil)
	srv := newTestServer(t, reg)
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	waitFor(t, func() bool { return reg.Len() == 1 })

	reg.mu.RLock()
	var id string
	for k := range reg.sessions {
		id = k
	}
	reg.mu.RUnlock()
	reg.Remove(id)
	if reg.Len() != 0 {
		t.Fatalf("session still registered")
	}
	// a second remove is harmless
	reg.Remove(id)
}
