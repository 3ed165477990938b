package binancesdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"futures-bot/internal/config"
	"futures-bot/internal/core"
	"futures-bot/internal/exchange"
)

var _ exchange.Gateway = (*Gateway)(nil)

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := New(config.ExchangeConfig{
		APIKey:            "k",
		APISecret:         "s",
		RestBaseURL:       srv.URL,
		ClientOrderPrefix: "fb",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

// requestParams merges query and body parameters regardless of method;
// the SDK sends some signed DELETE parameters in the body.
func requestParams(r *http.Request) url.Values {
	params := r.URL.Query()
	body, _ := io.ReadAll(r.Body)
	if form, err := url.ParseQuery(string(body)); err == nil {
		for k, vs := range form {
			for _, v := range vs {
				params.Add(k, v)
			}
		}
	}
	return params
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(config.ExchangeConfig{APIKey: "k"}); err == nil {
		t.Fatalf("New() without secret should fail")
	}
}

func TestSubmitOrderSendsFuturesParams(t *testing.T) {
	seen := make(chan url.Values, 1)
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/order") || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		form := requestParams(r)
		seen <- form
		_ = json.NewEncoder(w).Encode(map[string]any{
			"symbol":        "BTCUSDT",
			"orderId":       4242,
			"clientOrderId": form.Get("newClientOrderId"),
			"price":         "29400",
			"stopPrice":     "29500",
			"origQty":       "0.01",
			"executedQty":   "0",
			"status":        "NEW",
			"timeInForce":   "GTC",
			"type":          "STOP",
			"side":          "SELL",
			"updateTime":    1700000000000,
		})
	})

	req, err := core.Build(core.OrderInput{
		Symbol:     "btcusdt",
		Side:       "sell",
		Kind:       "STOP_LOSS_LIMIT",
		Quantity:   decimal.RequireFromString("0.01"),
		Price:      decimal.NewNullDecimal(decimal.RequireFromString("29500")),
		LimitPrice: decimal.NewNullDecimal(decimal.RequireFromString("29400")),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	order, err := g.SubmitOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	form := <-seen
	if form.Get("type") != "STOP" || form.Get("stopPrice") != "29500" || form.Get("price") != "29400" {
		t.Fatalf("form = %v, want STOP with stop 29500 and limit 29400", form)
	}
	if form.Get("timeInForce") != "GTC" || form.Get("side") != "SELL" || form.Get("symbol") != "BTCUSDT" {
		t.Fatalf("form = %v", form)
	}
	if !strings.HasPrefix(form.Get("newClientOrderId"), "fb-") {
		t.Fatalf("newClientOrderId = %q, want fb- prefix", form.Get("newClientOrderId"))
	}
	if form.Get("signature") == "" {
		t.Fatalf("request not signed: %v", form)
	}
	if order.ID != "4242" || order.Kind != core.StopLossLimit || order.Side != core.Sell {
		t.Fatalf("order = %+v", order)
	}
	if !order.StopPrice.Equal(decimal.NewFromInt(29500)) {
		t.Fatalf("stop price = %s, want 29500", order.StopPrice)
	}
}

func TestSubmitOrderMapsAPIError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	})
	req, err := core.BuildOrder("BTCUSDT", "BUY", "MARKET", decimal.NewFromInt(1), decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("BuildOrder() error = %v", err)
	}
	_, err = g.SubmitOrder(context.Background(), req)
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("SubmitOrder() error = %v, want ErrInsufficientBalance", err)
	}
}

func TestSubmitOrderMapsDuplicateClientID(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-4116,"msg":"ClientOrderId is duplicated."}`))
	})
	req, err := core.BuildOrder("BTCUSDT", "BUY", "MARKET", decimal.NewFromInt(1), decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("BuildOrder() error = %v", err)
	}
	_, err = g.SubmitOrder(context.Background(), req)
	if !errors.Is(err, core.ErrDuplicateOrder) {
		t.Fatalf("SubmitOrder() error = %v, want ErrDuplicateOrder", err)
	}
	if errors.Is(err, core.ErrOrderRejected) {
		t.Fatalf("SubmitOrder() error = %v, duplicate should not read as rejected", err)
	}
}

func TestBalanceOpenOrdersAndCancel(t *testing.T) {
	var cancelled string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		params := requestParams(r)
		switch {
		case strings.HasSuffix(r.URL.Path, "/balance"):
			_, _ = w.Write([]byte(`[{"accountAlias":"a","asset":"USDT","balance":"100.5","crossWalletBalance":"100.5","crossUnPnl":"2","availableBalance":"90","maxWithdrawAmount":"90"}]`))
		case strings.HasSuffix(r.URL.Path, "/openOrders"):
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","orderId":7,"clientOrderId":"c7","price":"30000","origQty":"0.01","executedQty":"0","status":"NEW","timeInForce":"GTC","type":"LIMIT","side":"BUY","stopPrice":"0","time":1700000000000,"updateTime":1700000000000}]`))
		case strings.HasSuffix(r.URL.Path, "/order") && r.Method == http.MethodDelete:
			cancelled = params.Get("orderId")
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":7,"status":"CANCELED"}`))
		default:
			http.NotFound(w, r)
		}
	})

	snap, err := g.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	usdt, ok := snap.Asset("USDT")
	if !ok || !usdt.Balance.Equal(decimal.RequireFromString("100.5")) || !usdt.Available.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("USDT = %+v (found %v)", usdt, ok)
	}

	orders, err := g.OpenOrders(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("OpenOrders() error = %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "7" || orders[0].Kind != core.Limit {
		t.Fatalf("orders = %+v", orders)
	}
	if orders[0].CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set")
	}

	if err := g.CancelOrder(context.Background(), "BTCUSDT", "7"); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if cancelled != "7" {
		t.Fatalf("cancelled = %q, want 7", cancelled)
	}
	cancelled = ""
	err = g.CancelOrder(context.Background(), "BTCUSDT", "abc")
	if !errors.Is(err, core.ErrValidation) || !errors.Is(err, core.ErrInvalidOrderID) {
		t.Fatalf("CancelOrder(abc) error = %v, want ErrValidation and ErrInvalidOrderID", err)
	}
	if errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("CancelOrder(abc) should not report an exchange lookup: %v", err)
	}
	if cancelled != "" {
		t.Fatalf("CancelOrder(abc) reached the exchange with orderId %q", cancelled)
	}
}
