package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"machinecraft.ai/internal/sim/replica"
	"machinecraft.ai/internal/sim/tuning"
	"machinecraft.ai/internal/transport/ws"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/replica", "replica endpoint url")
		name       = flag.String("name", "replica", "replica name")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		queue      = flag.Int("max_queue", 0, "server-side queue length (0 = server default)")
		retry      = flag.Duration("retry", 2*time.Second, "reconnect delay")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replica] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := session(ctx, logger, tune, *url, *name, *queue); err != nil && ctx.Err() == nil {
			logger.Printf("session ended: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*retry):
		}
	}
}

// session runs one connection: a fresh replica host fed from the stream and
// ticked at the server's rate.
func session(ctx context.Context, logger *log.Logger, tune tuning.Tuning, url, name string, queue int) error {
	c, err := ws.Dial(ctx, url, name, queue)
	if err != nil {
		return err
	}
	wel := c.Welcome()
	logger.Printf("WELCOME world=%s tick=%d tick_rate=%d tiers=%d", wel.WorldID, wel.Tick, wel.TickRateHz, len(wel.Tiers))

	host := replica.NewHost(tune, func(v replica.View) {
		logger.Printf("refresh %s %s at %v active=%v energy=%.0f/%.0f progress=%.2f", v.Kind, v.ID, v.Pos, v.Active, v.Energy, v.MaxStored, v.Progress)
	}, logger)
	host.ApplyWelcome(wel)

	rate := wel.TickRateHz
	if rate <= 0 {
		rate = tune.TickRateHz
	}
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		for {
			select {
			case <-sctx.Done():
				return
			case <-ticker.C:
				host.Tick()
			}
		}
	}()

	return c.Run(sctx, host.Apply)
}
