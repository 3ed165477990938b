package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures-bot/internal/core"
)

type traderSpy struct {
	inputs    []core.OrderInput
	cancelled []string
	symbols   []string
	placeErr  error
	snap      core.BalanceSnapshot
	orders    []core.Order
}

func (s *traderSpy) PlaceOrder(_ context.Context, in core.OrderInput) (core.Order, error) {
	s.inputs = append(s.inputs, in)
	if s.placeErr != nil {
		return core.Order{}, s.placeErr
	}
	req, err := core.Build(in)
	if err != nil {
		return core.Order{}, err
	}
	return core.Order{
		ID:        "101",
		ClientID:  "fb-x",
		Symbol:    req.Symbol,
		Side:      req.Side,
		Kind:      req.Kind,
		Qty:       req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    core.OrderNew,
	}, nil
}

func (s *traderSpy) Balance(context.Context) (core.BalanceSnapshot, error) {
	return s.snap, nil
}

func (s *traderSpy) OpenOrders(_ context.Context, symbol string) ([]core.Order, error) {
	s.symbols = append(s.symbols, symbol)
	return s.orders, nil
}

func (s *traderSpy) CancelOrder(_ context.Context, symbol, orderID string) error {
	s.cancelled = append(s.cancelled, symbol+"/"+orderID)
	return nil
}

func runMenu(t *testing.T, spy *traderSpy, script ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(script, "\n") + "\n")
	if err := NewMenuIO(spy, in, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String()
}

func TestMenuMarketOrder(t *testing.T) {
	spy := &traderSpy{}
	out := runMenu(t, spy, "1", "btcusdt", "buy", "0.01", "6")

	if len(spy.inputs) != 1 {
		t.Fatalf("PlaceOrder calls = %d, want 1", len(spy.inputs))
	}
	in := spy.inputs[0]
	if in.Kind != "MARKET" || in.Symbol != "btcusdt" || in.Side != "buy" {
		t.Fatalf("input = %+v", in)
	}
	if !in.Quantity.Equal(decimal.RequireFromString("0.01")) || in.Price.Valid {
		t.Fatalf("input qty/price = %s/%v", in.Quantity, in.Price)
	}
	if !strings.Contains(out, "Order placed: id=101") {
		t.Fatalf("output missing confirmation:\n%s", out)
	}
	if !strings.Contains(out, "Exiting bot...") {
		t.Fatalf("output missing exit message:\n%s", out)
	}
}

func TestMenuLimitAndStopMarketPrices(t *testing.T) {
	spy := &traderSpy{}
	runMenu(t, spy,
		"2", "BTCUSDT", "SELL", "0.01", "50000",
		"3", "BTCUSDT", "SELL", "0.01", "48000",
	)
	if len(spy.inputs) != 2 {
		t.Fatalf("PlaceOrder calls = %d, want 2", len(spy.inputs))
	}
	if spy.inputs[0].Kind != "LIMIT" || !spy.inputs[0].Price.Decimal.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("limit input = %+v", spy.inputs[0])
	}
	if spy.inputs[1].Kind != "STOP_MARKET" || !spy.inputs[1].Price.Decimal.Equal(decimal.NewFromInt(48000)) {
		t.Fatalf("stop market input = %+v", spy.inputs[1])
	}
}

func TestMenuStopLimitOptionalLimitPrice(t *testing.T) {
	spy := &traderSpy{}
	out := runMenu(t, spy,
		"7", "BTCUSDT", "BUY", "0.01", "49000", "",
		"7", "BTCUSDT", "BUY", "0.01", "49000", "49100",
		"6",
	)
	if len(spy.inputs) != 2 {
		t.Fatalf("PlaceOrder calls = %d, want 2", len(spy.inputs))
	}
	if spy.inputs[0].LimitPrice.Valid {
		t.Fatalf("blank limit price should stay unset: %+v", spy.inputs[0])
	}
	if !spy.inputs[1].LimitPrice.Valid || !spy.inputs[1].LimitPrice.Decimal.Equal(decimal.NewFromInt(49100)) {
		t.Fatalf("limit price = %+v, want 49100", spy.inputs[1].LimitPrice)
	}
	if !strings.Contains(out, "price=49000 stop=49000") {
		t.Fatalf("same-price stop limit not shown:\n%s", out)
	}
	if !strings.Contains(out, "price=49100 stop=49000") {
		t.Fatalf("distinct stop limit not shown:\n%s", out)
	}
}

func TestMenuInvalidNumberKeepsRunning(t *testing.T) {
	spy := &traderSpy{}
	out := runMenu(t, spy, "1", "BTCUSDT", "BUY", "abc", "6")
	if len(spy.inputs) != 0 {
		t.Fatalf("PlaceOrder should not be called for bad quantity")
	}
	if !strings.Contains(out, `invalid number "abc"`) {
		t.Fatalf("output missing parse error:\n%s", out)
	}
	if !strings.Contains(out, "Exiting bot...") {
		t.Fatalf("menu stopped after bad input:\n%s", out)
	}
}

func TestMenuReportsFailures(t *testing.T) {
	spy := &traderSpy{placeErr: &core.GatewayError{Op: "submit_order", Err: errors.New("margin is insufficient")}}
	out := runMenu(t, spy, "2", "BTCUSDT", "BUY", "1", "100", "9", "6")
	if !strings.Contains(out, "Order failed: submit_order: margin is insufficient") {
		t.Fatalf("output missing failure:\n%s", out)
	}
	if !strings.Contains(out, "Invalid choice, try again.") {
		t.Fatalf("output missing invalid choice message:\n%s", out)
	}
}

func TestMenuBalanceOpenOrdersAndCancel(t *testing.T) {
	spy := &traderSpy{
		snap: core.BalanceSnapshot{Assets: []core.AssetBalance{
			{Asset: "USDT", Balance: decimal.NewFromInt(1500), Available: decimal.NewFromInt(1400)},
			{Asset: "BNB"},
		}},
		orders: []core.Order{{ID: "7", Symbol: "BTCUSDT", Side: core.Buy, Kind: core.Limit, Qty: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}},
	}
	out := runMenu(t, spy, "4", "5", "btcusdt", "8", "BTCUSDT", "7", "6")

	if !strings.Contains(out, "USDT   balance=1500 available=1400") {
		t.Fatalf("balance output missing:\n%s", out)
	}
	if strings.Contains(out, "BNB") {
		t.Fatalf("zero balance asset should be hidden:\n%s", out)
	}
	if !strings.Contains(out, "id=7 BTCUSDT BUY LIMIT qty=1 price=100") {
		t.Fatalf("open order output missing:\n%s", out)
	}
	if len(spy.symbols) != 1 || spy.symbols[0] != "btcusdt" {
		t.Fatalf("open orders symbols = %v", spy.symbols)
	}
	if len(spy.cancelled) != 1 || spy.cancelled[0] != "BTCUSDT/7" {
		t.Fatalf("cancelled = %v", spy.cancelled)
	}
	if !strings.Contains(out, "Order 7 canceled.") {
		t.Fatalf("cancel confirmation missing:\n%s", out)
	}
}

func TestMenuStopsAtEndOfInput(t *testing.T) {
	spy := &traderSpy{}
	var out bytes.Buffer
	err := NewMenuIO(spy, strings.NewReader("2\nBTCUSDT\n"), &out).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(spy.inputs) != 0 {
		t.Fatalf("PlaceOrder called on truncated input")
	}
}

func TestMenuStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMenuIO(&traderSpy{}, strings.NewReader("1\n"), &bytes.Buffer{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestMenuCancelInterruptsBlockedPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	spy := &traderSpy{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewMenuIO(spy, pr, &bytes.Buffer{}).Run(ctx)
	}()
	if _, err := pw.Write([]byte("1\nBTCUSDT\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() still waiting on input after cancel")
	}
	if len(spy.inputs) != 0 {
		t.Fatalf("PlaceOrder called after cancel: %+v", spy.inputs)
	}
}

func TestPrompterCredentials(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(" secret-value \n"), &out)
	key, secret, ok := p.Credentials(context.Background(), "preset-key", "")
	if !ok || key != "preset-key" || secret != "secret-value" {
		t.Fatalf("Credentials() = %q, %q, %v", key, secret, ok)
	}
	if strings.Contains(out.String(), "API Key") {
		t.Fatalf("should not prompt for a preset key:\n%s", out.String())
	}
	if _, _, ok := NewPrompter(strings.NewReader(""), &out).Credentials(context.Background(), "", ""); ok {
		t.Fatalf("Credentials() on empty input should report ok=false")
	}
}
