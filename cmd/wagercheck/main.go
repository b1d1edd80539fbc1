package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-wager/internal/wagerclient"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

func main() {
	var (
		baseURL = flag.String("node", envOr("WAGER_NODE_URL", "http://127.0.0.1:8080"), "node base URL")
		matchID = flag.String("match", "", "only show events for this match id")
		player  = flag.String("player", "", "only show events involving this address")
		window  = flag.Duration("watch", 10*time.Second, "how long to tail events; 0 skips the event check")
	)
	flag.Parse()

	client := wagerclient.NewClient(*baseURL,
		wagerclient.WithTimeout(8*time.Second),
		wagerclient.WithRetry(2),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := client.Config(ctx)
	if err != nil {
		log.Fatalf("/v1/config error: %v", err)
	}
	log.Printf("/v1/config ok: contract=%s version=%s admin=%s min_bet=%s%s height=%d",
		cfg.Contract, cfg.Version, cfg.Admin, cfg.MinBet.Amount, cfg.MinBet.Denom, cfg.Height)

	if *matchID != "" {
		m, err := client.Match(ctx, *matchID)
		if err != nil {
			log.Printf("match %s: %v", *matchID, err)
		} else {
			log.Printf("match %s: %s vs %s state=%s turn=%s", *matchID, m.Challenger, m.Opponent, m.State, m.Turn)
		}
	}

	if *window <= 0 {
		return
	}
	wsURL, err := wagerclient.EventsURL(*baseURL, *matchID, *player)
	if err != nil {
		log.Fatalf("events url: %v", err)
	}

	w := wagerclient.NewWatcher(wsURL, 3)
	w.OnStateChange(func(s wagerclient.WatchState) {
		log.Printf("events state: %s", s)
	})
	w.OnEvent(func(ev wagerdto.Event) {
		fmt.Printf("h=%d %s %v\n", ev.Height, ev.Type, ev.Attributes)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := w.Connect(cctx); err != nil {
		log.Printf("events connect error: %v", err)
		return
	}

	t := time.NewTimer(*window)
	<-t.C

	_ = w.Close(context.Background())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
