package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"futures-bot/internal/core"
)

type gatewaySpy struct {
	mu         sync.Mutex
	submitted  []core.OrderRequest
	cancelled  []string
	submitErr  error
	balanceErr error
	openErr    error
	cancelErr  error
	orders     []core.Order
}

func (g *gatewaySpy) Name() string { return "spy" }

func (g *gatewaySpy) SubmitOrder(_ context.Context, req core.OrderRequest) (core.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, req)
	if g.submitErr != nil {
		return core.Order{}, g.submitErr
	}
	return core.Order{
		ID:       "42",
		ClientID: "fb-1",
		Symbol:   req.Symbol,
		Side:     req.Side,
		Kind:     req.Kind,
		Price:    req.Price,
		Qty:      req.Quantity,
		Status:   core.OrderNew,
	}, nil
}

func (g *gatewaySpy) Balance(context.Context) (core.BalanceSnapshot, error) {
	if g.balanceErr != nil {
		return core.BalanceSnapshot{}, g.balanceErr
	}
	return core.BalanceSnapshot{Assets: []core.AssetBalance{{Asset: "USDT", Balance: decimal.NewFromInt(1000)}}}, nil
}

func (g *gatewaySpy) OpenOrders(_ context.Context, _ string) ([]core.Order, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	return g.orders, nil
}

func (g *gatewaySpy) CancelOrder(_ context.Context, symbol, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, symbol+"/"+orderID)
	return g.cancelErr
}

type alertSpy struct {
	mu     sync.Mutex
	events []string
}

func (a *alertSpy) Important(event string, _ map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func newTestTrader(gw *gatewaySpy) (*Trader, *observer.ObservedLogs, *alertSpy) {
	obs, logs := observer.New(zapcore.DebugLevel)
	alerts := &alertSpy{}
	return New(gw, zap.New(obs), alerts), logs, alerts
}

func limitInput(qty string) core.OrderInput {
	return core.OrderInput{
		Symbol:   "btcusdt",
		Side:     "sell",
		Kind:     "LIMIT",
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.NewNullDecimal(decimal.NewFromInt(50000)),
	}
}

func TestPlaceOrderSubmitsBuiltRequest(t *testing.T) {
	gw := &gatewaySpy{}
	tr, logs, alerts := newTestTrader(gw)

	order, err := tr.PlaceOrder(context.Background(), limitInput("0.01"))
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if order.ID != "42" {
		t.Fatalf("order.ID = %q, want 42", order.ID)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(gw.submitted))
	}
	req := gw.submitted[0]
	if req.Symbol != "BTCUSDT" || req.Side != core.Sell || req.TimeInForce != core.GTC {
		t.Fatalf("request = %+v", req)
	}
	placed := logs.FilterMessage("order_placed").All()
	if len(placed) != 1 {
		t.Fatalf("order_placed logs = %d, want 1", len(placed))
	}
	if got := placed[0].ContextMap()["order_id"]; got != "42" {
		t.Fatalf("order_placed order_id = %v, want 42", got)
	}
	if len(alerts.events) != 1 || alerts.events[0] != "order_placed" {
		t.Fatalf("alerts = %v, want [order_placed]", alerts.events)
	}
}

func TestPlaceOrderValidationSkipsGateway(t *testing.T) {
	gw := &gatewaySpy{}
	tr, logs, alerts := newTestTrader(gw)

	_, err := tr.PlaceOrder(context.Background(), limitInput("0"))
	if !errors.Is(err, core.ErrInvalidQuantity) {
		t.Fatalf("PlaceOrder() error = %v, want ErrInvalidQuantity", err)
	}
	if !IsValidation(err) {
		t.Fatalf("IsValidation(%v) = false", err)
	}
	if len(gw.submitted) != 0 {
		t.Fatalf("gateway called %d times for invalid input", len(gw.submitted))
	}
	if logs.FilterMessage("order_rejected_locally").Len() != 1 {
		t.Fatalf("missing order_rejected_locally log")
	}
	if len(alerts.events) != 0 {
		t.Fatalf("alerts = %v, want none", alerts.events)
	}
}

func TestPlaceOrderWrapsGatewayError(t *testing.T) {
	gw := &gatewaySpy{submitErr: errors.Join(errors.New("margin is insufficient"), core.ErrInsufficientBalance)}
	tr, logs, alerts := newTestTrader(gw)

	_, err := tr.PlaceOrder(context.Background(), limitInput("0.01"))
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("PlaceOrder() error = %T, want *core.GatewayError", err)
	}
	if gwErr.Op != "submit_order" {
		t.Fatalf("gwErr.Op = %q, want submit_order", gwErr.Op)
	}
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("PlaceOrder() error = %v, want ErrInsufficientBalance in chain", err)
	}
	if IsValidation(err) {
		t.Fatalf("gateway error reported as validation error")
	}
	failed := logs.FilterMessage("order_failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel {
		t.Fatalf("order_failed logs = %+v", failed)
	}
	if len(alerts.events) != 1 || alerts.events[0] != "order_failed" {
		t.Fatalf("alerts = %v, want [order_failed]", alerts.events)
	}
}

func TestBalanceAndOpenOrders(t *testing.T) {
	gw := &gatewaySpy{orders: []core.Order{{ID: "1"}, {ID: "2"}}}
	tr, logs, _ := newTestTrader(gw)

	snap, err := tr.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if len(snap.Assets) != 1 {
		t.Fatalf("assets = %d, want 1", len(snap.Assets))
	}
	orders, err := tr.OpenOrders(context.Background(), " btcusdt ")
	if err != nil {
		t.Fatalf("OpenOrders() error = %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(orders))
	}
	fetched := logs.FilterMessage("open_orders_fetched").All()
	if len(fetched) != 1 || fetched[0].ContextMap()["symbol"] != "BTCUSDT" {
		t.Fatalf("open_orders_fetched logs = %+v", fetched)
	}
}

func TestReadErrorsAreGatewayErrors(t *testing.T) {
	boom := errors.New("connection reset")
	gw := &gatewaySpy{balanceErr: boom, openErr: boom, cancelErr: boom}
	tr, _, _ := newTestTrader(gw)

	var gwErr *core.GatewayError
	if _, err := tr.Balance(context.Background()); !errors.As(err, &gwErr) || !errors.Is(err, boom) {
		t.Fatalf("Balance() error = %v, want GatewayError wrapping boom", err)
	}
	if _, err := tr.OpenOrders(context.Background(), "BTCUSDT"); !errors.As(err, &gwErr) || gwErr.Op != "open_orders" {
		t.Fatalf("OpenOrders() error = %v, want open_orders GatewayError", err)
	}
	if err := tr.CancelOrder(context.Background(), "BTCUSDT", "7"); !errors.As(err, &gwErr) || gwErr.Op != "cancel_order" {
		t.Fatalf("CancelOrder() error = %v, want cancel_order GatewayError", err)
	}
}

func TestCancelOrder(t *testing.T) {
	gw := &gatewaySpy{}
	tr, _, _ := newTestTrader(gw)

	if err := tr.CancelOrder(context.Background(), "ethusdt", "99"); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "ETHUSDT/99" {
		t.Fatalf("cancelled = %v, want [ETHUSDT/99]", gw.cancelled)
	}
	if err := tr.CancelOrder(context.Background(), "ETHUSDT", ""); !errors.Is(err, core.ErrMissingOrderID) {
		t.Fatalf("CancelOrder(empty id) error = %v, want ErrMissingOrderID", err)
	}
	if len(gw.cancelled) != 1 {
		t.Fatalf("gateway called for invalid cancel")
	}
}

func TestNewDefaultsToNopLogger(t *testing.T) {
	tr := New(&gatewaySpy{}, nil, nil)
	if _, err := tr.PlaceOrder(context.Background(), limitInput("1")); err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
}
