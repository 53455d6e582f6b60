package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homewatch/homewatch/internal/store"
	wsHub "github.com/homewatch/homewatch/internal/ws"
)

const testInterval = 20 * time.Millisecond

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// startHub serves the hub over a test HTTP server and runs its ticker loop.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFeed(t *testing.T, conn *websocket.Conn) wsHub.Feed {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var feed wsHub.Feed
	if err := json.Unmarshal(msg, &feed); err != nil {
		t.Fatalf("unmarshal %q: %v", msg, err)
	}
	return feed
}

func TestInitialFeedOnConnect(t *testing.T) {
	st := newStore(t)
	ev := &store.Event{Timestamp: time.Now().UTC(), Severity: 2, Source: "test", Title: "boom"}
	if err := st.CreateEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	wsURL, _ := startHub(t, st)
	conn := dial(t, wsURL)

	feed := readFeed(t, conn)
	if feed.Event != "events" {
		t.Errorf("envelope event = %q", feed.Event)
	}
	if len(feed.Events) != 1 || feed.Events[0].Title != "boom" {
		t.Errorf("feed events = %+v", feed.Events)
	}
	if feed.UnreadCount != 1 {
		t.Errorf("unread = %d", feed.UnreadCount)
	}
}

func TestBroadcastPicksUpNewEvents(t *testing.T) {
	st := newStore(t)
	wsURL, _ := startHub(t, st)
	conn := dial(t, wsURL)

	// Initial feed is empty.
	if feed := readFeed(t, conn); len(feed.Events) != 0 {
		t.Fatalf("initial feed = %+v", feed.Events)
	}

	ev := &store.Event{Timestamp: time.Now().UTC(), Severity: 3, Title: "late"}
	if err := st.CreateEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	// A later tick must carry the new event.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		feed := readFeed(t, conn)
		if len(feed.Events) == 1 && feed.Events[0].Title == "late" {
			return
		}
	}
	t.Fatal("broadcast never carried the new event")
}

func TestClientCount(t *testing.T) {
	wsURL, hub := startHub(t, newStore(t))

	if hub.Count() != 0 {
		t.Fatalf("count = %d before any client", hub.Count())
	}

	conn := dial(t, wsURL)
	waitFor(t, func() bool { return hub.Count() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
