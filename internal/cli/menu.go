package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"futures-bot/internal/core"
)

// Trader is the order facade the menu drives.
type Trader interface {
	PlaceOrder(ctx context.Context, in core.OrderInput) (core.Order, error)
	Balance(ctx context.Context) (core.BalanceSnapshot, error)
	OpenOrders(ctx context.Context, symbol string) ([]core.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

const menuText = `
1. Place Market Order
2. Place Limit Order
3. Place Stop-Market Order
4. Check Balance
5. View Open Orders
6. Exit
7. Place Stop-Limit Order
8. Cancel Order`

var errInputClosed = errors.New("input closed")

type Menu struct {
	trader Trader
	p      *Prompter
}

func NewMenu(trader Trader, p *Prompter) *Menu {
	return &Menu{trader: trader, p: p}
}

// NewMenuIO is NewMenu over a fresh Prompter.
func NewMenuIO(trader Trader, in io.Reader, out io.Writer) *Menu {
	return NewMenu(trader, NewPrompter(in, out))
}

// Run loops until the user exits, input ends or ctx is done. A pending
// prompt is abandoned when ctx is done and ctx.Err() is returned. Failed
// actions are reported and the loop continues.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.p.Println(menuText)
		choice, ok := m.p.Ask(ctx, "Enter choice: ")
		if !ok {
			return ctx.Err()
		}
		var err error
		switch choice {
		case "1":
			err = m.placeOrder(ctx, core.Market)
		case "2":
			err = m.placeOrder(ctx, core.Limit)
		case "3":
			err = m.placeOrder(ctx, core.StopMarket)
		case "4":
			err = m.showBalance(ctx)
		case "5":
			err = m.showOpenOrders(ctx)
		case "6":
			m.p.Println("Exiting bot...")
			return nil
		case "7":
			err = m.placeOrder(ctx, core.StopLossLimit)
		case "8":
			err = m.cancelOrder(ctx)
		default:
			m.p.Println("Invalid choice, try again.")
		}
		if errors.Is(err, errInputClosed) {
			return ctx.Err()
		}
	}
}

func (m *Menu) placeOrder(ctx context.Context, kind core.OrderKind) error {
	in := core.OrderInput{Kind: string(kind)}
	var ok bool
	if in.Symbol, ok = m.p.Ask(ctx, "Enter symbol (e.g. BTCUSDT): "); !ok {
		return errInputClosed
	}
	if in.Side, ok = m.p.Ask(ctx, "Enter side (BUY/SELL): "); !ok {
		return errInputClosed
	}
	qty, ok, err := m.p.AskDecimal(ctx, "Enter quantity: ", false)
	if !ok {
		return errInputClosed
	}
	if err != nil {
		m.p.Println("Error:", err)
		return err
	}
	in.Quantity = qty.Decimal

	switch kind {
	case core.Limit:
		if in.Price, ok, err = m.p.AskDecimal(ctx, "Enter price: ", false); !ok {
			return errInputClosed
		}
	case core.StopMarket:
		if in.Price, ok, err = m.p.AskDecimal(ctx, "Enter stop price: ", false); !ok {
			return errInputClosed
		}
	case core.StopLossLimit:
		if in.Price, ok, err = m.p.AskDecimal(ctx, "Enter stop price: ", false); !ok {
			return errInputClosed
		}
		if err == nil {
			if in.LimitPrice, ok, err = m.p.AskDecimal(ctx, "Enter limit price (blank = stop price): ", true); !ok {
				return errInputClosed
			}
		}
	}
	if err != nil {
		m.p.Println("Error:", err)
		return err
	}

	order, err := m.trader.PlaceOrder(ctx, in)
	if err != nil {
		m.p.Println("Order failed:", err)
		return err
	}
	m.p.Printf("Order placed: id=%s client_id=%s status=%s\n", order.ID, order.ClientID, order.Status)
	m.p.Println("  " + formatOrder(order))
	return nil
}

func (m *Menu) showBalance(ctx context.Context) error {
	snap, err := m.trader.Balance(ctx)
	if err != nil {
		m.p.Println("Balance request failed:", err)
		return err
	}
	shown := 0
	for _, a := range snap.Assets {
		if a.Balance.IsZero() && a.Available.IsZero() {
			continue
		}
		m.p.Printf("%-6s balance=%s available=%s unrealized_pnl=%s\n", a.Asset, a.Balance, a.Available, a.UnrealizedPnL)
		shown++
	}
	if shown == 0 {
		m.p.Println("No assets with a balance.")
	}
	return nil
}

func (m *Menu) showOpenOrders(ctx context.Context) error {
	symbol, ok := m.p.Ask(ctx, "Enter symbol (e.g. BTCUSDT): ")
	if !ok {
		return errInputClosed
	}
	orders, err := m.trader.OpenOrders(ctx, symbol)
	if err != nil {
		m.p.Println("Open orders request failed:", err)
		return err
	}
	if len(orders) == 0 {
		m.p.Println("No open orders.")
		return nil
	}
	for _, o := range orders {
		m.p.Printf("id=%s %s\n", o.ID, formatOrder(o))
	}
	return nil
}

func (m *Menu) cancelOrder(ctx context.Context) error {
	symbol, ok := m.p.Ask(ctx, "Enter symbol (e.g. BTCUSDT): ")
	if !ok {
		return errInputClosed
	}
	orderID, ok := m.p.Ask(ctx, "Enter order id: ")
	if !ok {
		return errInputClosed
	}
	if err := m.trader.CancelOrder(ctx, symbol, orderID); err != nil {
		m.p.Println("Cancel failed:", err)
		return err
	}
	m.p.Printf("Order %s canceled.\n", orderID)
	return nil
}

func formatOrder(o core.Order) string {
	parts := []string{
		o.Symbol,
		string(o.Side),
		string(o.Kind),
		"qty=" + o.Qty.String(),
	}
	if o.Price.Sign() > 0 {
		parts = append(parts, "price="+o.Price.String())
	}
	if o.StopPrice.Sign() > 0 {
		parts = append(parts, "stop="+o.StopPrice.String())
	}
	if o.ExecutedQty.Sign() > 0 {
		parts = append(parts, "filled="+o.ExecutedQty.String())
	}
	if o.Status != "" {
		parts = append(parts, "status="+string(o.Status))
	}
	return strings.Join(parts, " ")
}
