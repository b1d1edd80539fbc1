package wagerclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-wager/internal/api"
	"github.com/park285/cheese-wager/internal/chain"
	"github.com/park285/cheese-wager/internal/escrow"
	"github.com/park285/cheese-wager/internal/eventhub"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/rules"
	"github.com/park285/cheese-wager/internal/wager"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

const (
	challenger = "neutron1m9l358xunhhwds0568za49mzhvuxx9ux8xafx2"
	opponent   = "neutron10h9stc5v6ntgeygf5xf945njqq5h32r54rf7kf"
	denom      = "untrn"
)

var stake = wagerdto.Coin{Denom: denom, Amount: "10"}

func newNode(t *testing.T) (*httptest.Server, *eventhub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := eventhub.New(16)
	host, err := chain.New(ledger.NewMemStore(), wager.New(rules.NewChessEngine()), "wagercontract", chain.WithPublisher(hub))
	require.NoError(t, err)
	_, err = host.ApplyGenesis(context.Background(), chain.Genesis{
		Admin:  "admin",
		MinBet: escrow.NewCoin(10, denom),
		Accounts: []chain.Account{
			{Address: challenger, Coins: []escrow.Coin{escrow.NewCoin(100, denom)}},
			{Address: opponent, Coins: []escrow.Coin{escrow.NewCoin(100, denom)}},
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.Deps{Host: host, Events: hub}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := newNode(t)
	c := NewClient(srv.URL, WithTimeout(5*time.Second))
	ctx := context.Background()

	res, err := c.CreateMatch(ctx, challenger, opponent, stake)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	id := res.Events[0].Attributes["match_id"]

	_, err = c.JoinMatch(ctx, opponent, id, stake)
	require.NoError(t, err)
	_, err = c.MakeMove(ctx, challenger, id, "e2e4")
	require.NoError(t, err)

	m, err := c.Match(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "black", m.Turn)

	list, err := c.PlayerMatches(ctx, challenger)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	all, err := c.Matches(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Height)

	bal, err := c.Balance(ctx, opponent, denom)
	require.NoError(t, err)
	assert.Equal(t, "90", bal.Coin.Amount)
}

func TestClientDecodesDomainErrors(t *testing.T) {
	srv, _ := newNode(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	res, err := c.CreateMatch(ctx, challenger, opponent, stake)
	require.NoError(t, err)
	id := res.Events[0].Attributes["match_id"]

	_, err = c.AbortMatch(ctx, opponent, id)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "%v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "NOT_MATCH_CREATOR", apiErr.Code)
	assert.False(t, apiErr.Retryable)

	_, err = c.History(ctx, challenger, 5)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NO_ARCHIVE", apiErr.Code)
}

func TestClientRetriesIdempotentReads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"contract":"cheese-wager","version":"1.0.0","admin":"admin","min_bet":{"denom":"untrn","amount":"10"},"next_nonce":0,"height":0}`))
	}))
	defer srv.Close()

	cfg, err := NewClient(srv.URL, WithRetry(3)).Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cheese-wager", cfg.Contract)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryRejectedSubmit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithRetry(3)).AbortMatch(context.Background(), challenger, "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "HTTP_503", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientRetriesRetryableSubmit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"CONFLICT","message":"retry","retryable":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"height":7,"attributes":{},"events":[]}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, WithRetry(2)).AbortMatch(context.Background(), challenger, "x")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Height)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHeaderProvider(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Request-Id": "abc", " ": "ignored"}
	}))
	_, err := c.Matches(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", <-got)
}

func TestEventsURL(t *testing.T) {
	u, err := EventsURL("http://node:8080/", "abc", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://node:8080/v1/events?match_id=abc", u)

	u, err = EventsURL("https://node", "", "p1")
	require.NoError(t, err)
	assert.Equal(t, "wss://node/v1/events?player=p1", u)

	_, err = EventsURL("ftp://node", "", "")
	assert.Error(t, err)
}

func TestWatcherReceivesCommittedEvents(t *testing.T) {
	srv, hub := newNode(t)
	wsURL, err := EventsURL(srv.URL, "", challenger)
	require.NoError(t, err)

	w := NewWatcher(wsURL, 0)
	events := make(chan wagerdto.Event, 8)
	w.OnEvent(func(ev wagerdto.Event) { events <- ev })
	require.NoError(t, w.Connect(context.Background()))
	defer func() { _ = w.Close(context.Background()) }()
	assert.Equal(t, WatchConnected, w.State())

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		require.False(t, time.Now().After(deadline), "subscriber never registered")
		time.Sleep(10 * time.Millisecond)
	}

	_, err = NewClient(srv.URL).CreateMatch(context.Background(), challenger, opponent, stake)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, wager.EventMatchCreated, ev.Type)
		assert.Equal(t, uint64(1), ev.Height)
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWatcherReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		_ = wsjson.Write(ctx, c, wagerdto.Event{Height: uint64(n), Type: "tick"})
		_ = c.Close(websocket.StatusGoingAway, "bye")
	}))
	defer srv.Close()

	w := NewWatcher("ws"+srv.URL[len("http"):], 5)

	var mu sync.Mutex
	var states []WatchState
	w.OnStateChange(func(s WatchState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	heights := make(chan uint64, 8)
	w.OnEvent(func(ev wagerdto.Event) {
		select {
		case heights <- ev.Height:
		default:
		}
	})

	require.NoError(t, w.Connect(context.Background()))
	for want := uint64(1); want <= 2; want++ {
		select {
		case h := <-heights:
			assert.Equal(t, want, h)
		case <-time.After(3 * time.Second):
			t.Fatalf("no event from connection %d", want)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, WatchReconnecting)
	assert.Equal(t, WatchDisconnected, states[len(states)-1])
}

func TestWatcherGivesUpWithoutReconnects(t *testing.T) {
	w := NewWatcher("ws://127.0.0.1:1/v1/events", 0)
	err := w.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, WatchFailed, w.State())
	require.NoError(t, w.Close(context.Background()))
	assert.Error(t, w.Connect(context.Background()))
}
