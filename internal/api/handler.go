package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/cheese-wager/internal/boardimg"
	"github.com/park285/cheese-wager/internal/chain"
	"github.com/park285/cheese-wager/internal/msgcat"
	"github.com/park285/cheese-wager/internal/wager"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	renderTimeout       = 5 * time.Second
)

// Handler serves operations and queries against one host.
type Handler struct {
	host *chain.Host
	msgs *msgcat.Catalog
}

func NewHandler(host *chain.Host, msgs *msgcat.Catalog) *Handler {
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	return &Handler{host: host, msgs: msgs}
}

// SubmitTx executes one operation.
func (h *Handler) SubmitTx(c *gin.Context) {
	var req wagerdto.TxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errBadRequest("invalid json body"))
		return
	}
	msg, err := msgFromEnvelope(req.Msg)
	if err != nil {
		h.fail(c, err)
		return
	}
	funds, err := coinsFromDTO(req.Funds)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.host.Execute(c.Request.Context(), req.Sender, funds, msg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txResponse(res))
}

func (h *Handler) GetMatch(c *gin.Context) {
	entry, err := h.host.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, matchView(entry))
}

// ListMatches pages through live matches in creation order.
func (h *Handler) ListMatches(c *gin.Context) {
	var startAfter *uint64
	if raw := c.Query("start_after"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.fail(c, errBadRequest("start_after must be an unsigned integer"))
			return
		}
		startAfter = &n
	}
	limit, err := queryLimit(c, 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.host.Matches(c.Request.Context(), startAfter, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, matchList(entries))
}

func (h *Handler) PlayerMatches(c *gin.Context) {
	entries, err := h.host.PlayerMatches(c.Request.Context(), c.Param("addr"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, matchList(entries))
}

func (h *Handler) PlayerHistory(c *gin.Context) {
	limit, err := queryLimit(c, defaultHistoryLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	results, err := h.host.History(c.Request.Context(), c.Param("addr"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, historyList(results))
}

func (h *Handler) GetConfig(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := h.host.Config(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	height, err := h.host.Height(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wagerdto.ConfigView{
		Contract:  cfg.Info.Contract,
		Version:   cfg.Info.Version,
		Admin:     cfg.Admin.String(),
		MinBet:    coinToDTO(cfg.MinBet),
		NextNonce: cfg.NextNonce,
		Height:    height,
	})
}

func (h *Handler) GetBalance(c *gin.Context) {
	addr, denom := c.Param("addr"), c.Param("denom")
	v, err := h.host.Balance(c.Request.Context(), addr, denom)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wagerdto.BalanceView{Address: addr, Coin: wagerdto.Coin{Denom: denom, Amount: v.Dec()}})
}

// BoardPNG renders the stored position of a live match.
func (h *Handler) BoardPNG(c *gin.Context) {
	entry, err := h.host.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	m := entry.Match

	footer := strings.ReplaceAll(wager.StateName(m.State), "_", " ")
	if turn := wager.StateTurn(m.State); turn != "" {
		footer += ", " + turn + " to move"
	}
	flip, _ := strconv.ParseBool(c.Query("flip"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), renderTimeout)
	defer cancel()
	png, err := boardimg.RenderPNG(ctx, m.Board, boardimg.Options{
		Header:    m.Challenger.String() + " vs " + m.Opponent.String(),
		Footer:    footer,
		Highlight: c.Query("highlight"),
		Flip:      flip,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func queryLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadRequest("limit must be a non-negative integer")
	}
	return n, nil
}
