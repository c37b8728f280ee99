// Command climate-bot answers chat commands for approved users and relays
// access requests to the admin for approval.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sweeney/climate-bot/internal/access"
	"github.com/sweeney/climate-bot/internal/bot"
	"github.com/sweeney/climate-bot/internal/config"
	"github.com/sweeney/climate-bot/internal/dht"
	"github.com/sweeney/climate-bot/internal/graph"
	"github.com/sweeney/climate-bot/internal/membership"
	"github.com/sweeney/climate-bot/internal/sensor"
	"github.com/sweeney/climate-bot/internal/telegram"
	"github.com/sweeney/climate-bot/internal/timeseries"
)

func main() {
	cfg, err := config.BotFromEnv()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Bot) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	client, err := telegram.New(cfg.Token)
	if err != nil {
		return err
	}

	// The bot still serves logged data and access requests without a sensor.
	var reader bot.Reader
	dev, err := dht.NewRealSensor(cfg.Sensor.Chip, cfg.Sensor.Pin)
	if err != nil {
		log.Printf("sensor unavailable, serving logged readings only: %v", err)
	} else {
		defer dev.Close()
		reader = sensor.NewRetrying(dev)
	}

	dispatcher, gateway, err := wire(cfg, client, reader)
	if err != nil {
		return err
	}

	log.Printf("started: bot=@%s admin=%s data=%s", client.Username(), gateway.Admin(), cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = dispatcher.Run(ctx, client.Updates(ctx))
	log.Printf("shutting down")
	return err
}

// wire loads persisted membership and assembles the dispatcher.
func wire(cfg config.Bot, transport bot.Transport, reader bot.Reader) (*bot.Dispatcher, *access.Gateway, error) {
	allowed, err := membership.Load(cfg.WhitelistPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load allow list: %w", err)
	}
	denied, err := membership.Load(cfg.BlacklistPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load deny list: %w", err)
	}
	store, err := timeseries.New(cfg.SensorDir())
	if err != nil {
		return nil, nil, err
	}

	gateway := access.NewGateway(cfg.Admin, allowed, denied, bot.NewNotifier(transport))
	log.Printf("gateway: %d allowed, %d denied", allowed.Len(), denied.Len())

	dispatcher := bot.New(bot.Dependencies{
		Gateway:   gateway,
		Reader:    reader,
		Store:     store,
		Renderer:  graph.New(),
		Transport: transport,
		Config: bot.Config{
			PiholeURL:      cfg.PiholeURL,
			PiholePassword: cfg.PiholePassword,
			PiholeLog:      cfg.PiholeLog,
			HistoryFilter:  cfg.HistoryFilter,
		},
	})
	return dispatcher, gateway, nil
}
