package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"futures-bot/internal/alert"
	"futures-bot/internal/cli"
	"futures-bot/internal/config"
	"futures-bot/internal/engine"
	"futures-bot/internal/exchange"
	"futures-bot/internal/exchange/binance"
	"futures-bot/internal/exchange/binancesdk"
	"futures-bot/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "config yaml path (empty: defaults + environment)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	logger, err := logging.NewFileLogger(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fatal(err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("bot_stopped", zap.Error(err))
		fatal(err.Error())
	}
}

func run(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer, logger *zap.Logger) error {
	prompter := cli.NewPrompter(in, out)
	prompter.Println(banner(cfg.Mode))

	key, secret, ok := prompter.Credentials(ctx, cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	if !ok {
		return ctx.Err()
	}
	cfg.Exchange.APIKey, cfg.Exchange.APISecret = key, secret
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	alerts := buildAlertManager(cfg, logger)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	gw, closeGateway, err := buildGateway(cfg, alerts)
	if err != nil {
		return err
	}
	defer closeGateway()

	logger.Info("bot_started",
		zap.String("mode", string(cfg.Mode)),
		zap.String("driver", string(cfg.Exchange.Driver)),
		zap.String("gateway", gw.Name()),
		zap.String("rest_base_url", cfg.Exchange.RestBaseURL),
	)
	trader := engine.New(gw, logger, alerter(alerts))
	err = cli.NewMenu(trader, prompter).Run(ctx)
	logger.Info("bot_exited")
	return err
}

func banner(mode config.Mode) string {
	if mode == config.ModeLive {
		return "=== Binance Futures Trading Bot (LIVE) ==="
	}
	return "=== Binance Futures Testnet Trading Bot ==="
}

func buildGateway(cfg config.Config, alerts *alert.Manager) (exchange.Gateway, func(), error) {
	switch cfg.Exchange.Driver {
	case config.DriverSDK:
		gw, err := binancesdk.New(cfg.Exchange)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() {}, nil
	case config.DriverREST, "":
		client, err := binance.NewClient(cfg.Exchange)
		if err != nil {
			return nil, nil, err
		}
		if alerts != nil {
			client.SetAlerter(alerts)
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown exchange driver %q", cfg.Exchange.Driver)
	}
}

// alerter keeps a nil *alert.Manager from becoming a non-nil interface.
func alerter(m *alert.Manager) alert.Alerter {
	if m == nil {
		return nil
	}
	return m
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildAlertManager(cfg config.Config, logger *zap.Logger) *alert.Manager {
	tg := cfg.Observability.Telegram
	if !tg.Enabled {
		return nil
	}
	notifier := alert.NewTelegramNotifier(alert.TelegramOptions{
		BotToken:   tg.BotToken,
		ChatID:     tg.ChatID,
		APIBaseURL: tg.APIBaseURL,
		Timeout:    time.Duration(tg.TimeoutSec) * time.Second,
	})
	return alert.NewManagerWithOptions(string(cfg.Mode), notifier, alert.ManagerOptions{
		DropReportInterval: time.Duration(cfg.Observability.AlertDropReportSec) * time.Second,
		Logger:             logger,
	})
}
