// Package wagerclient talks to a wagerd node over HTTP and its event stream.
package wagerclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-wager/pkg/wagerdto"
)

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// APIError is a non-2xx response. DomainError is decoded when the body carries one.
type APIError struct {
	Status int
	wagerdto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wager api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit executes one operation. Only rejections marked retryable are retried;
// they guarantee nothing was committed.
func (c *Client) Submit(ctx context.Context, req wagerdto.TxRequest) (*wagerdto.TxResponse, error) {
	var resp wagerdto.TxResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/tx", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateMatch(ctx context.Context, sender, opponent string, stake wagerdto.Coin) (*wagerdto.TxResponse, error) {
	return c.Submit(ctx, wagerdto.TxRequest{
		Sender: sender,
		Funds:  []wagerdto.Coin{stake},
		Msg:    wagerdto.MsgEnvelope{CreateMatch: &wagerdto.CreateMatchMsg{Opponent: opponent}},
	})
}

func (c *Client) JoinMatch(ctx context.Context, sender, matchID string, stake wagerdto.Coin) (*wagerdto.TxResponse, error) {
	return c.Submit(ctx, wagerdto.TxRequest{
		Sender: sender,
		Funds:  []wagerdto.Coin{stake},
		Msg:    wagerdto.MsgEnvelope{JoinMatch: &wagerdto.MatchRef{MatchID: matchID}},
	})
}

func (c *Client) AbortMatch(ctx context.Context, sender, matchID string) (*wagerdto.TxResponse, error) {
	return c.Submit(ctx, wagerdto.TxRequest{
		Sender: sender,
		Msg:    wagerdto.MsgEnvelope{AbortMatch: &wagerdto.MatchRef{MatchID: matchID}},
	})
}

func (c *Client) MakeMove(ctx context.Context, sender, matchID, move string) (*wagerdto.TxResponse, error) {
	return c.Submit(ctx, wagerdto.TxRequest{
		Sender: sender,
		Msg:    wagerdto.MsgEnvelope{MakeMove: &wagerdto.MakeMoveMsg{MatchID: matchID, Move: move}},
	})
}

func (c *Client) Match(ctx context.Context, id string) (*wagerdto.MatchView, error) {
	var out wagerdto.MatchView
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/matches/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Matches(ctx context.Context, startAfter *uint64, limit int) ([]wagerdto.MatchView, error) {
	q := url.Values{}
	if startAfter != nil {
		q.Set("start_after", strconv.FormatUint(*startAfter, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/matches"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out wagerdto.MatchList
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (c *Client) PlayerMatches(ctx context.Context, addr string) ([]wagerdto.MatchView, error) {
	var out wagerdto.MatchList
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/players/"+url.PathEscape(addr)+"/matches", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (c *Client) History(ctx context.Context, addr string, limit int) ([]wagerdto.HistoryEntry, error) {
	path := "/v1/players/" + url.PathEscape(addr) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out wagerdto.HistoryList
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) Config(ctx context.Context) (*wagerdto.ConfigView, error) {
	var out wagerdto.ConfigView
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/config", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Balance(ctx context.Context, addr, denom string) (*wagerdto.BalanceView, error) {
	var out wagerdto.BalanceView
	path := "/v1/balances/" + url.PathEscape(addr) + "/" + url.PathEscape(denom)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}
	idempotent := method == fasthttp.MethodGet

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			// A POST may have reached the node before the transport failed.
			if attempt == attempts || !idempotent {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := decodeError(status, resp.Body())
			if attempt == attempts || !shouldRetry(apiErr, idempotent) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if err := json.Unmarshal(body, &e.DomainError); err != nil || e.Code == "" {
		e.Code = "HTTP_" + strconv.Itoa(status)
		e.Message = truncate(string(body), 512)
	}
	return e
}

func shouldRetry(e *APIError, idempotent bool) bool {
	if e.Retryable {
		return true
	}
	if !idempotent {
		return false
	}
	switch e.Status {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
