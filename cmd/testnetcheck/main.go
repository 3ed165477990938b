package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"futures-bot/internal/config"
	"futures-bot/internal/core"
	"futures-bot/internal/exchange/binance"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

// probePriceFactor keeps the probe order resting below market while
// staying inside the futures PERCENT_PRICE band.
var probePriceFactor = decimal.RequireFromString("0.96")

type checkResult struct {
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Mode       config.Mode   `json:"mode"`
	Symbol     string        `json:"symbol"`
	Checks     []checkResult `json:"checks"`
}

type selectedChecks struct {
	preflight  bool
	openOrders bool
	lifecycle  bool
}

func main() {
	var (
		configPath   string
		symbol       string
		timeoutSec   int
		outJSONPath  string
		allowLiveRun bool
		checkFlag    string
	)
	flag.StringVar(&configPath, "config", "", "config yaml path (empty: defaults + environment)")
	flag.StringVar(&symbol, "symbol", "BTCUSDT", "futures symbol to check")
	flag.IntVar(&timeoutSec, "timeout-sec", 60, "total timeout seconds")
	flag.StringVar(&outJSONPath, "out-json", "", "optional output report path")
	flag.BoolVar(&allowLiveRun, "allow-live", false, "allow running checks when mode=live")
	flag.StringVar(&checkFlag, "check", "default", "checks to run: default | all | comma list (preflight,open_orders,lifecycle)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	if cfg.Mode == config.ModeLive && !allowLiveRun {
		fatal("mode=live blocked by default; set -allow-live=true to continue")
	}
	if err := cfg.ValidateCredentials(); err != nil {
		fatal(err.Error())
	}
	checks, err := parseCheckFlag(checkFlag)
	if err != nil {
		fatal(err.Error())
	}
	symbol = core.NormalizeSymbol(symbol)
	if timeoutSec < 10 {
		timeoutSec = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	client, err := binance.NewClient(cfg.Exchange)
	if err != nil {
		fatal(err.Error())
	}
	defer client.Close()

	r := report{
		StartedAt: time.Now().UTC(),
		Mode:      cfg.Mode,
		Symbol:    symbol,
	}

	var (
		marketLoaded bool
		rules        core.Rules
		lastPrice    decimal.Decimal
		available    decimal.Decimal
		placedID     string
	)

	loadMarketContext := func() error {
		if marketLoaded {
			return nil
		}
		var err error
		rules, err = client.GetRules(ctx, symbol)
		if err != nil {
			return err
		}
		lastPrice, err = client.TickerPrice(ctx, symbol)
		if err != nil {
			return err
		}
		snap, err := client.Balance(ctx)
		if err != nil {
			return err
		}
		if usdt, ok := snap.Asset("USDT"); ok {
			available = usdt.Available
		}
		marketLoaded = true
		return nil
	}

	run := func(name string, fn func() (string, error)) {
		start := time.Now()
		detail, err := fn()
		cr := checkResult{
			Name:       name,
			DurationMs: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
		if err != nil {
			cr.Status = statusFail
			cr.Error = err.Error()
		} else {
			cr.Status = statusPass
		}
		r.Checks = append(r.Checks, cr)
		if cr.Status == statusPass {
			fmt.Printf("[PASS] %s (%dms)", name, cr.DurationMs)
			if cr.Detail != "" {
				fmt.Printf(" - %s", cr.Detail)
			}
			fmt.Println()
		} else {
			fmt.Printf("[FAIL] %s (%dms) - %s\n", name, cr.DurationMs, cr.Error)
		}
	}

	if checks.preflight {
		run("exchange_preflight", func() (string, error) {
			serverTime, err := client.ServerTime(ctx)
			if err != nil {
				return "", err
			}
			if err := loadMarketContext(); err != nil {
				return "", err
			}
			skew := time.Since(serverTime).Round(time.Millisecond)
			return fmt.Sprintf("skew=%s price=%s minQty=%s minNotional=%s tick=%s availableUSDT=%s",
				skew, lastPrice, rules.MinQty, rules.MinNotional, rules.PriceTick, available), nil
		})
	}

	if checks.openOrders {
		run("open_orders_list", func() (string, error) {
			orders, err := client.OpenOrders(ctx, symbol)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("open=%d", len(orders)), nil
		})
	}

	if checks.lifecycle {
		run("order_lifecycle_place_query_cancel", func() (string, error) {
			if err := loadMarketContext(); err != nil {
				return "", err
			}
			req, err := probeOrder(symbol, rules, lastPrice)
			if err != nil {
				return "", err
			}
			placed, err := client.SubmitOrder(ctx, req)
			if err != nil {
				return "", err
			}
			if placed.ID == "" {
				return "", errors.New("empty order id")
			}
			placedID = placed.ID

			query, err := client.QueryOrder(ctx, symbol, placed.ID, placed.ClientID)
			if err != nil {
				return "", err
			}
			open, err := client.OpenOrders(ctx, symbol)
			if err != nil {
				return "", err
			}
			foundInOpen := false
			for _, ord := range open {
				if ord.ID == placed.ID {
					foundInOpen = true
					break
				}
			}

			status := string(query.Status)
			switch query.Status {
			case core.OrderNew, core.OrderPartiallyFilled:
				if err := client.CancelOrder(ctx, symbol, placed.ID); err != nil {
					return "", fmt.Errorf("cancel order failed: %w", err)
				}
				placedID = ""
				time.Sleep(400 * time.Millisecond)
				if after, err := client.QueryOrder(ctx, symbol, placed.ID, placed.ClientID); err == nil {
					status = string(after.Status)
				}
			default:
				placedID = ""
			}
			return fmt.Sprintf("id=%s clientId=%s qty=%s price=%s status=%s foundInOpen=%t",
				placed.ID, placed.ClientID, req.Quantity, req.Price, status, foundInOpen), nil
		})
	}

	// best-effort cleanup when the lifecycle check bailed out mid-way
	if placedID != "" {
		_ = client.CancelOrder(context.Background(), symbol, placedID)
	}

	r.FinishedAt = time.Now().UTC()
	printSummary(r)

	if outJSONPath != "" {
		if err := writeReport(outJSONPath, r); err != nil {
			fatal(err.Error())
		}
		fmt.Printf("report written: %s\n", outJSONPath)
	}

	for _, c := range r.Checks {
		if c.Status == statusFail {
			os.Exit(1)
		}
	}
}

func parseCheckFlag(raw string) (selectedChecks, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "default" {
		return selectedChecks{preflight: true, openOrders: true}, nil
	}
	if raw == "all" {
		return selectedChecks{preflight: true, openOrders: true, lifecycle: true}, nil
	}

	var out selectedChecks
	for _, p := range strings.Split(raw, ",") {
		name := strings.TrimSpace(p)
		switch name {
		case "":
			continue
		case "preflight", "exchange_preflight":
			out.preflight = true
		case "open_orders", "open_orders_list":
			out.openOrders = true
		case "lifecycle", "order_lifecycle", "order_lifecycle_place_query_cancel":
			out.lifecycle = true
		default:
			return selectedChecks{}, fmt.Errorf("unknown check: %s", name)
		}
	}
	if !out.preflight && !out.openOrders && !out.lifecycle {
		return selectedChecks{}, errors.New("no checks selected")
	}
	return out, nil
}

// probeOrder builds the smallest GTC buy limit the symbol rules allow,
// priced just under the last trade so it rests on the book.
func probeOrder(symbol string, rules core.Rules, lastPrice decimal.Decimal) (core.OrderRequest, error) {
	if lastPrice.Sign() <= 0 {
		return core.OrderRequest{}, errors.New("missing ticker price")
	}
	price := lastPrice.Mul(probePriceFactor)
	if rules.PriceTick.Sign() > 0 {
		price = core.RoundDown(price, rules.PriceTick)
	}
	if price.Sign() <= 0 {
		return core.OrderRequest{}, errors.New("calculated order price <= 0")
	}
	qty := core.MinProbeQty(rules, price)
	req, err := core.BuildOrder(symbol, string(core.Buy), string(core.Limit), qty, decimal.NewNullDecimal(price))
	if err != nil {
		return core.OrderRequest{}, err
	}
	return core.FitToRules(req, rules, price)
}

func printSummary(r report) {
	pass := 0
	fail := 0
	for _, c := range r.Checks {
		if c.Status == statusPass {
			pass++
		} else {
			fail++
		}
	}
	fmt.Printf("\nsummary mode=%s symbol=%s pass=%d fail=%d duration=%s\n",
		r.Mode,
		r.Symbol,
		pass,
		fail,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	)
}

func writeReport(path string, r report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(msg))
	os.Exit(1)
}
