package tradier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"MarketHub/pkg/logger"
)

type wsFrame struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

func newStreamFixture(t *testing.T) (*Stream, chan wsFrame, func()) {
	t.Helper()
	frames := make(chan wsFrame, 8)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var f wsFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStream(wsURL, "test-key", time.Second, time.Minute, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		cancel()
		srv.Close()
		t.Fatalf("stream start: %v", err)
	}
	return s, frames, func() {
		s.Close()
		cancel()
		srv.Close()
	}
}

func nextFrame(t *testing.T, frames chan wsFrame) wsFrame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame received")
		return wsFrame{}
	}
}

func TestStreamSubscribeSendsFrame(t *testing.T) {
	s, frames, teardown := newStreamFixture(t)
	defer teardown()

	unsub, err := s.watch("SPY", func(streamEvent) {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer unsub()

	f := nextFrame(t, frames)
	if f.Type != "subscribe" {
		t.Fatalf("expected subscribe frame, got %q", f.Type)
	}
	if len(f.Symbols) != 1 || f.Symbols[0] != "SPY" {
		t.Fatalf("unexpected symbols %v", f.Symbols)
	}
}

func TestStreamUnsubscribeSendsFrameOnLastHandler(t *testing.T) {
	s, frames, teardown := newStreamFixture(t)
	defer teardown()

	unsub1, err := s.watch("SPY", func(streamEvent) {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if f := nextFrame(t, frames); f.Type != "subscribe" {
		t.Fatalf("expected subscribe frame, got %q", f.Type)
	}

	unsub2, err := s.watch("SPY", func(streamEvent) {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// A second handler on the same symbol sends nothing either way.
	unsub1()
	select {
	case f := <-frames:
		t.Fatalf("unexpected frame %+v while a handler remains", f)
	case <-time.After(100 * time.Millisecond):
	}

	unsub2()
	f := nextFrame(t, frames)
	if f.Type != "unsubscribe" {
		t.Fatalf("expected unsubscribe frame, got %q", f.Type)
	}
	if len(f.Symbols) != 1 || f.Symbols[0] != "SPY" {
		t.Fatalf("unexpected symbols %v", f.Symbols)
	}
}
