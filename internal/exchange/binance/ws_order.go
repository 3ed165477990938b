package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"futures-bot/internal/core"
	"futures-bot/internal/exchange"
)

type orderWSConn struct {
	conn *websocket.Conn
	stop chan struct{}
}

// SubmitOrder places req on the exchange. With WebSocket order entry
// enabled the order goes through order.place first; transport failures
// fall back to REST with the same client order id.
func (c *Client) SubmitOrder(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	if req.ClientID == "" {
		req.ClientID = newClientOrderID(c.clientOrderPrefix)
	}
	if !c.useWSOrders || c.wsBaseURL == "" {
		return c.placeOrderREST(ctx, req)
	}
	placed, err := c.placeOrderWS(ctx, req)
	if err == nil {
		if c.clearWSDegraded() {
			c.alertImportant("ws_order_recovered", map[string]string{
				"symbol": req.Symbol,
			})
		}
		return placed, nil
	}
	if _, ok := AsAPIError(err); ok {
		// the exchange answered; REST would reject it the same way
		return core.Order{}, err
	}
	c.markWSDegraded()
	c.alertImportant("ws_order_fallback_to_rest", orderAlertFields(req, "ws_error", err))
	placed, restErr := c.placeOrderREST(ctx, req)
	if restErr != nil {
		c.alertImportant("rest_order_failed", orderAlertFields(req, "rest_error", restErr))
	}
	return placed, restErr
}

func orderAlertFields(req core.OrderRequest, errKey string, err error) map[string]string {
	fields := req.Fields()
	fields["client_id"] = req.ClientID
	fields[errKey] = err.Error()
	return fields
}

// orderParams renders req in futures wire naming. STOP_LOSS_LIMIT is
// sent as type STOP.
func orderParams(req core.OrderRequest) (url.Values, error) {
	if req.Symbol == "" {
		return nil, errors.New("symbol required")
	}
	if req.Quantity.Sign() <= 0 {
		return nil, core.ErrInvalidQuantity
	}
	if req.Kind.NeedsPrice() && !req.HasPrice() && !req.HasStopPrice() {
		return nil, core.ErrMissingPrice
	}
	params := url.Values{}
	for k, v := range req.Fields() {
		params.Set(k, v)
	}
	params.Set("type", exchange.FuturesOrderType(req.Kind))
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	return params, nil
}

func (c *Client) placeOrderWS(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return core.Order{}, errors.New("api_key/api_secret required")
	}
	values, err := orderParams(req)
	if err != nil {
		return core.Order{}, err
	}
	c.orderMu.Lock()
	defer c.orderMu.Unlock()

	conn, err := c.ensureOrderConn(ctx)
	if err != nil {
		return core.Order{}, err
	}

	values.Set("apiKey", c.apiKey)
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		values.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	values.Set("signature", sign(c.apiSecret, values.Encode()))
	params := make(map[string]interface{}, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}

	resp, err := sendWSRequest(ctx, conn, "order.place", params)
	if err != nil {
		if _, ok := AsAPIError(err); !ok {
			c.resetOrderConn()
		}
		return core.Order{}, err
	}
	var result orderResponse
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return core.Order{}, err
	}
	return placedOrder(req, result), nil
}

func (c *Client) placeOrderREST(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	params, err := orderParams(req)
	if err != nil {
		return core.Order{}, err
	}
	body, err := c.doRequest(ctx, http.MethodPost, pathOrder, params, AuthSigned)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateOrder) && req.ClientID != "" {
			if existing, qerr := c.QueryOrder(ctx, req.Symbol, "", req.ClientID); qerr == nil {
				return existing, nil
			}
		}
		if apiErr, ok := AsAPIError(err); ok && errors.Is(err, core.ErrOrderRejected) {
			c.alertImportant("order_rejected", map[string]string{
				"symbol":     req.Symbol,
				"side":       string(req.Side),
				"type":       string(req.Kind),
				"client_id":  req.ClientID,
				"error_code": strconv.Itoa(apiErr.Code),
				"error_msg":  apiErr.Msg,
			})
		}
		return core.Order{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Order{}, err
	}
	return placedOrder(req, resp), nil
}

// placedOrder merges the exchange acknowledgement with the request so
// fields an ACK response omits are still populated.
func placedOrder(req core.OrderRequest, resp orderResponse) core.Order {
	order := resp.toOrder()
	if order.ClientID == "" {
		order.ClientID = req.ClientID
	}
	if order.Symbol == "" {
		order.Symbol = req.Symbol
	}
	if order.Side == "" {
		order.Side = req.Side
	}
	if order.Kind == "" {
		order.Kind = req.Kind
	}
	if order.Qty.IsZero() {
		order.Qty = req.Quantity
	}
	if order.Price.IsZero() && req.HasPrice() {
		order.Price = req.Price
	}
	if order.StopPrice.IsZero() && req.HasStopPrice() {
		order.StopPrice = req.StopPrice
	}
	if order.Status == "" {
		order.Status = core.OrderNew
	}
	if order.TimeInForce == "" {
		order.TimeInForce = req.TimeInForce
	}
	return order
}

func (c *Client) ensureOrderConn(ctx context.Context) (*websocket.Conn, error) {
	if c.orderConn != nil {
		return c.orderConn.conn, nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsBaseURL, nil)
	if err != nil {
		return nil, err
	}
	ow := &orderWSConn{conn: conn, stop: make(chan struct{})}
	c.orderConn = ow
	if c.orderWSKeepalive > 0 {
		go c.orderKeepaliveLoop(ow)
	}
	return conn, nil
}

func (c *Client) resetOrderConn() {
	if c.orderConn == nil {
		return
	}
	close(c.orderConn.stop)
	_ = c.orderConn.conn.Close()
	c.orderConn = nil
}

var orderSeq uint64

func newClientOrderID(prefix string) string {
	if prefix == "" {
		prefix = "fb"
	}
	tsPart := strconv.FormatInt(time.Now().UnixNano(), 36)
	seqPart := strconv.FormatUint(atomic.AddUint64(&orderSeq, 1), 36)
	suffix := tsPart + "-" + seqPart
	maxPrefix := 36 - 1 - len(suffix)
	if maxPrefix < 1 {
		maxPrefix = 1
	}
	if len(prefix) > maxPrefix {
		prefix = prefix[:maxPrefix]
	}
	return prefix + "-" + suffix
}

func (c *Client) orderKeepaliveLoop(ow *orderWSConn) {
	ticker := time.NewTicker(c.orderWSKeepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.orderMu.Lock()
			if c.orderConn == nil || c.orderConn != ow {
				c.orderMu.Unlock()
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err := sendWSRequest(ctx, ow.conn, "ping", nil)
			cancel()
			if err != nil {
				c.resetOrderConn()
				c.orderMu.Unlock()
				return
			}
			c.orderMu.Unlock()
		case <-ow.stop:
			return
		}
	}
}
