// Package api exposes the wager host over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/park285/cheese-wager/internal/chain"
	"github.com/park285/cheese-wager/internal/msgcat"
)

// Deps wires the router. Events, Messages and RateLimiter are optional.
type Deps struct {
	Host         *chain.Host
	Events       http.Handler
	Messages     *msgcat.Catalog
	RateLimiter  *redis.Client
	TxRateLimit  int
	TxRateWindow time.Duration
	Version      string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog())
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := NewHandler(d.Host, d.Messages)
	health := NewHealthHandler(d.Host, d.Version)

	window := d.TxRateWindow
	if window <= 0 {
		window = time.Minute
	}

	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/tx", RateLimit(d.RateLimiter, d.TxRateLimit, window), h.SubmitTx)

		v1.GET("/matches", h.ListMatches)
		v1.GET("/matches/:id", h.GetMatch)
		v1.GET("/matches/:id/board.png", h.BoardPNG)
		v1.GET("/players/:addr/matches", h.PlayerMatches)
		v1.GET("/players/:addr/history", h.PlayerHistory)
		v1.GET("/config", h.GetConfig)
		v1.GET("/balances/:addr/:denom", h.GetBalance)

		if d.Events != nil {
			v1.GET("/events", gin.WrapH(d.Events))
		}
	}
}
