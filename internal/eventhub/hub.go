// Package eventhub fans committed events out to websocket observers.
package eventhub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-wager/internal/obslog"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

const (
	defaultBuffer = 64
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
)

var (
	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wager_event_subscribers",
		Help: "Connected event stream subscribers",
	})
	droppedSubscribers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wager_event_subscribers_dropped_total",
		Help: "Subscribers disconnected because their buffer filled",
	})
)

func init() {
	prometheus.MustRegister(subscribersGauge)
	prometheus.MustRegister(droppedSubscribers)
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	MatchID string
	Player  string
}

func (f Filter) matches(ev wagerdto.Event) bool {
	if f.MatchID != "" && ev.Attributes["match_id"] != f.MatchID {
		return false
	}
	if f.Player != "" {
		found := false
		for _, k := range []string{"challenger", "opponent", "player", "winner", "sender"} {
			if ev.Attributes[k] == f.Player {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type subscriber struct {
	ch     chan wagerdto.Event
	filter Filter
}

// Hub broadcasts without ever blocking the publisher. A subscriber whose buffer
// is full is dropped and its channel closed.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	buffer int
	closed bool
}

func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[int]*subscriber), buffer: buffer}
}

// Publish delivers events in order to every matching subscriber.
func (h *Hub) Publish(events ...wagerdto.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		for _, ev := range events {
			if !s.filter.matches(ev) {
				continue
			}
			select {
			case s.ch <- ev:
			default:
				obslog.L().Warn("events_ws_drop", zap.Int("subscriber", id))
				droppedSubscribers.Inc()
				h.removeLocked(id)
			}
			if _, still := h.subs[id]; !still {
				break
			}
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func is idempotent.
func (h *Hub) Subscribe(f Filter) (<-chan wagerdto.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan wagerdto.Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = &subscriber{ch: ch, filter: f}
	subscribersGauge.Inc()
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.removeLocked(id)
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs {
		h.removeLocked(id)
	}
	h.closed = true
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub) removeLocked(id int) {
	s, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(s.ch)
	subscribersGauge.Dec()
}

// ServeHTTP upgrades to a websocket and streams events as JSON text frames.
// Query parameters match_id and player narrow the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		obslog.L().Warn("events_ws_accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	filter := Filter{MatchID: r.URL.Query().Get("match_id"), Player: r.URL.Query().Get("player")}
	events, cancel := h.Subscribe(filter)
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				if h.isClosed() {
					_ = conn.Close(websocket.StatusGoingAway, "shutting down")
				} else {
					_ = conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				}
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}
