// cmd/streamer connects to the market-data endpoint, streams candles for a
// set of assets and prints a live RSI for the first one.
//
// Usage:
//
//	go run ./cmd/streamer --config=. --period=60
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quotexstream/config"
	"quotexstream/internal/client"
	"quotexstream/internal/indicator"
	"quotexstream/internal/logger"
	"quotexstream/internal/metrics"
	"quotexstream/internal/model"
	redisstore "quotexstream/internal/store/redis"
)

func main() {
	configPath := flag.String("config", ".", "Directory containing config.yaml")
	assetsFlag := flag.String("assets", "", "Comma-separated assets (overrides config)")
	period := flag.Int64("period", 60, "Candle period in seconds")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[streamer] config load failed: %v", err)
	}

	zl, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputFile: cfg.Log.OutputFile,
	})
	if err != nil {
		log.Fatalf("[streamer] logger init failed: %v", err)
	}
	defer zl.Sync()

	assets := cfg.Assets
	if *assetsFlag != "" {
		assets = strings.Split(*assetsFlag, ",")
	}
	if len(assets) == 0 {
		zl.Fatal("no assets configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New()
		go metrics.Serve(ctx, cfg.Metrics.Addr, zl)
	}

	cl := client.New(client.Config{
		URL:               cfg.Stream.URL,
		Reconnect:         cfg.Stream.Reconnect,
		ReconnectAttempts: cfg.Stream.ReconnectAttempts,
		ReconnectDelay:    cfg.Stream.ReconnectDelay(),
		Session:           cfg.Session.Token,
		IsDemo:            cfg.Session.IsDemo,
		TournamentID:      cfg.Session.TournamentID,
	}, zl, met)

	if cfg.Redis.Enabled {
		pub, err := redisstore.NewPublisher(cfg.Redis.Addr, cfg.Redis.Password, zl)
		if err != nil {
			zl.Fatal("redis connect failed", zap.Error(err))
		}
		defer pub.Close()
		cl.SetPublisher(pub)
	}

	if err := cl.Connect(ctx); err != nil {
		zl.Fatal("connect failed", zap.Error(err))
	}
	defer cl.Disconnect()

	for _, asset := range assets {
		asset := strings.TrimSpace(asset)
		cancelStream := cl.SubscribeCandles(asset, *period, func(c model.Candle) {
			zl.Info("candle",
				zap.String("asset", asset),
				zap.Int64("time", c.Time),
				zap.Float64("open", c.Open),
				zap.Float64("high", c.High),
				zap.Float64("low", c.Low),
				zap.Float64("close", c.Close))
		})
		defer cancelStream()
	}

	first := strings.TrimSpace(assets[0])
	cancelRSI, err := cl.SubscribeIndicator(ctx, first, *period,
		indicator.KindRSI, indicator.Params{Period: 14},
		func(r *indicator.Result) {
			zl.Info("rsi",
				zap.String("asset", first),
				zap.Float64("value", r.Current["value"]),
				zap.Int("history", r.HistorySize))
		})
	if err != nil {
		zl.Warn("rsi subscription failed", zap.Error(err))
	} else {
		defer cancelRSI()
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zl.Info("shutting down")
			return
		case <-ticker.C:
			if w := cl.OpeningClosingCurrent(first, *period); w != nil {
				zl.Debug("current bucket",
					zap.Int64("opening", w.Opening),
					zap.Int64("closing", w.Closing),
					zap.Int64("remaining", w.Remaining))
			}
		}
	}
}
