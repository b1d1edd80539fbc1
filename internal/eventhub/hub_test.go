package eventhub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-wager/pkg/wagerdto"
)

func event(height uint64, typ, matchID string) wagerdto.Event {
	return wagerdto.Event{Height: height, Type: typ, Attributes: map[string]string{"match_id": matchID, "player": "alice"}}
}

func TestPublishDeliversInOrder(t *testing.T) {
	h := New(8)
	ch, cancel := h.Subscribe(Filter{})
	defer cancel()

	h.Publish(event(1, "match_created", "a"), event(2, "match_started", "a"))
	for _, want := range []string{"match_created", "match_started"} {
		select {
		case ev := <-ch:
			if ev.Type != want {
				t.Fatalf("got %s want %s", ev.Type, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestFilter(t *testing.T) {
	h := New(8)
	byMatch, c1 := h.Subscribe(Filter{MatchID: "b"})
	defer c1()
	byPlayer, c2 := h.Subscribe(Filter{Player: "bob"})
	defer c2()

	h.Publish(event(1, "match_created", "a"), event(2, "match_created", "b"))

	if got := len(byMatch); got != 1 {
		t.Fatalf("match filter delivered %d events", got)
	}
	if got := len(byPlayer); got != 0 {
		t.Fatalf("player filter delivered %d events", got)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := New(1)
	ch, cancel := h.Subscribe(Filter{})
	defer cancel()

	h.Publish(event(1, "x", "a"), event(2, "y", "a"))
	if h.Len() != 0 {
		t.Fatalf("slow subscriber still registered")
	}
	<-ch
	if _, ok := <-ch; ok {
		t.Fatalf("dropped subscriber channel should be closed")
	}
	cancel()
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	h := New(4)
	ch, _ := h.Subscribe(Filter{})
	h.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	late, _ := h.Subscribe(Filter{})
	if _, ok := <-late; ok {
		t.Fatalf("subscribing after Close yields a closed channel")
	}
}

func TestServeHTTPStreamsJSON(t *testing.T) {
	h := New(8)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?match_id=a"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for h.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Publish(event(1, "match_created", "skip"), event(2, "match_started", "a"))

	var got wagerdto.Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "match_started" || got.Height != 2 || got.Attributes["match_id"] != "a" {
		t.Fatalf("unexpected event %+v", got)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
