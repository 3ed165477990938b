// Package binancesdk implements exchange.Gateway on top of the
// go-binance futures client.
package binancesdk

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"futures-bot/internal/config"
	"futures-bot/internal/core"
	"futures-bot/internal/exchange"
	"futures-bot/internal/exchange/binance"
)

type Gateway struct {
	client *futures.Client
	prefix string
}

func New(cfg config.ExchangeConfig) (*Gateway, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("api_key/api_secret required")
	}
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.RestBaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.RestBaseURL, "/")
	}
	timeout := 15 * time.Second
	if cfg.HTTPTimeoutSec > 0 {
		timeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Gateway{client: client, prefix: cfg.ClientOrderPrefix}, nil
}

func (g *Gateway) Name() string { return "binance-futures-sdk" }

func (g *Gateway) SubmitOrder(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(exchange.FuturesOrderType(req.Kind))).
		Quantity(req.Quantity.String())
	if req.TimeInForce != "" {
		svc = svc.TimeInForce(futures.TimeInForceType(req.TimeInForce))
	}
	if req.HasPrice() {
		svc = svc.Price(req.Price.String())
	}
	if req.HasStopPrice() {
		svc = svc.StopPrice(req.StopPrice.String())
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	} else if g.prefix != "" {
		svc = svc.NewClientOrderID(g.prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 36))
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return core.Order{}, mapError(err)
	}
	order := core.Order{
		ID:          strconv.FormatInt(resp.OrderID, 10),
		ClientID:    resp.ClientOrderID,
		Symbol:      resp.Symbol,
		Side:        core.Side(resp.Side),
		Kind:        exchange.KindFromFuturesType(string(resp.Type)),
		Price:       parseDecimal(resp.Price),
		StopPrice:   parseDecimal(resp.StopPrice),
		Qty:         parseDecimal(resp.OrigQuantity),
		ExecutedQty: parseDecimal(resp.ExecutedQuantity),
		Status:      core.OrderStatus(resp.Status),
		TimeInForce: core.TimeInForce(resp.TimeInForce),
	}
	if resp.UpdateTime > 0 {
		order.UpdatedAt = time.UnixMilli(resp.UpdateTime)
		order.CreatedAt = order.UpdatedAt
	}
	if order.Status == "" {
		order.Status = core.OrderNew
	}
	return order, nil
}

func (g *Gateway) Balance(ctx context.Context) (core.BalanceSnapshot, error) {
	balances, err := g.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return core.BalanceSnapshot{}, mapError(err)
	}
	snap := core.BalanceSnapshot{
		Assets:    make([]core.AssetBalance, 0, len(balances)),
		FetchedAt: time.Now().UTC(),
	}
	for _, b := range balances {
		snap.Assets = append(snap.Assets, core.AssetBalance{
			Asset:         b.Asset,
			Balance:       parseDecimal(b.Balance),
			Available:     parseDecimal(b.AvailableBalance),
			UnrealizedPnL: parseDecimal(b.CrossUnPnl),
		})
	}
	return snap, nil
}

func (g *Gateway) OpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	svc := g.client.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	orders := make([]core.Order, 0, len(resp))
	for _, o := range resp {
		orders = append(orders, toOrder(o))
	}
	return orders, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if symbol == "" || orderID == "" {
		return errors.New("symbol and orderID required")
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return &core.ValidationError{Field: "order_id", Err: core.ErrInvalidOrderID}
	}
	_, err = g.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	return mapError(err)
}

func toOrder(o *futures.Order) core.Order {
	order := core.Order{
		ID:          strconv.FormatInt(o.OrderID, 10),
		ClientID:    o.ClientOrderID,
		Symbol:      o.Symbol,
		Side:        core.Side(o.Side),
		Kind:        exchange.KindFromFuturesType(string(o.Type)),
		Price:       parseDecimal(o.Price),
		StopPrice:   parseDecimal(o.StopPrice),
		Qty:         parseDecimal(o.OrigQuantity),
		ExecutedQty: parseDecimal(o.ExecutedQuantity),
		Status:      core.OrderStatus(o.Status),
		TimeInForce: core.TimeInForce(o.TimeInForce),
	}
	if o.Time > 0 {
		order.CreatedAt = time.UnixMilli(o.Time)
	}
	if o.UpdateTime > 0 {
		order.UpdatedAt = time.UnixMilli(o.UpdateTime)
	}
	return order
}

// mapError routes SDK API errors through the same classification as the
// REST client so callers can match core error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return binance.WrapAPIError(int(apiErr.Code), apiErr.Message)
	}
	return err
}

func parseDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
