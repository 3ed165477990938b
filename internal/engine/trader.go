package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"futures-bot/internal/alert"
	"futures-bot/internal/core"
	"futures-bot/internal/exchange"
)

// Trader validates user input into order requests and hands them to the
// gateway, one synchronous call at a time. Gateway failures come back as
// *core.GatewayError; they are logged and alerted, never retried.
type Trader struct {
	Gateway exchange.Gateway
	Logger  *zap.Logger
	Alerts  alert.Alerter
}

func New(gw exchange.Gateway, logger *zap.Logger, alerts alert.Alerter) *Trader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trader{Gateway: gw, Logger: logger, Alerts: alerts}
}

func (t *Trader) PlaceOrder(ctx context.Context, in core.OrderInput) (core.Order, error) {
	req, err := core.Build(in)
	if err != nil {
		t.Logger.Warn("order_rejected_locally",
			zap.String("symbol", in.Symbol),
			zap.String("side", in.Side),
			zap.String("kind", in.Kind),
			zap.Error(err),
		)
		return core.Order{}, err
	}
	order, err := t.Gateway.SubmitOrder(ctx, req)
	if err != nil {
		gwErr := &core.GatewayError{Op: "submit_order", Err: err}
		t.Logger.Error("order_failed", append(requestFields(req), zap.Error(err))...)
		fields := req.Fields()
		fields["error"] = err.Error()
		t.alertImportant("order_failed", fields)
		return core.Order{}, gwErr
	}
	t.Logger.Info("order_placed", append(requestFields(req),
		zap.String("order_id", order.ID),
		zap.String("client_id", order.ClientID),
		zap.String("status", string(order.Status)),
	)...)
	fields := req.Fields()
	fields["order_id"] = order.ID
	fields["status"] = string(order.Status)
	t.alertImportant("order_placed", fields)
	return order, nil
}

func (t *Trader) Balance(ctx context.Context) (core.BalanceSnapshot, error) {
	snap, err := t.Gateway.Balance(ctx)
	if err != nil {
		t.Logger.Error("balance_failed", zap.Error(err))
		return core.BalanceSnapshot{}, &core.GatewayError{Op: "balance", Err: err}
	}
	t.Logger.Info("balance_fetched", zap.Int("assets", len(snap.Assets)))
	return snap, nil
}

func (t *Trader) OpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	symbol = core.NormalizeSymbol(symbol)
	orders, err := t.Gateway.OpenOrders(ctx, symbol)
	if err != nil {
		t.Logger.Error("open_orders_failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, &core.GatewayError{Op: "open_orders", Err: err}
	}
	t.Logger.Info("open_orders_fetched", zap.String("symbol", symbol), zap.Int("count", len(orders)))
	return orders, nil
}

func (t *Trader) CancelOrder(ctx context.Context, symbol, orderID string) error {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return &core.ValidationError{Field: "symbol", Err: core.ErrInvalidSymbol}
	}
	if orderID == "" {
		return &core.ValidationError{Field: "order_id", Err: core.ErrMissingOrderID}
	}
	if err := t.Gateway.CancelOrder(ctx, symbol, orderID); err != nil {
		t.Logger.Error("cancel_failed", zap.String("symbol", symbol), zap.String("order_id", orderID), zap.Error(err))
		return &core.GatewayError{Op: "cancel_order", Err: err}
	}
	t.Logger.Info("order_canceled", zap.String("symbol", symbol), zap.String("order_id", orderID))
	return nil
}

func (t *Trader) alertImportant(event string, fields map[string]string) {
	if t.Alerts == nil {
		return
	}
	t.Alerts.Important(event, fields)
}

func requestFields(req core.OrderRequest) []zap.Field {
	fields := []zap.Field{
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("kind", string(req.Kind)),
		zap.String("quantity", req.Quantity.String()),
	}
	if req.HasPrice() {
		fields = append(fields, zap.String("price", req.Price.String()))
	}
	if req.HasStopPrice() {
		fields = append(fields, zap.String("stop_price", req.StopPrice.String()))
	}
	if req.TimeInForce != "" {
		fields = append(fields, zap.String("time_in_force", string(req.TimeInForce)))
	}
	return fields
}

// IsValidation reports whether err was rejected locally, before any
// network call.
func IsValidation(err error) bool {
	return errors.Is(err, core.ErrValidation)
}
