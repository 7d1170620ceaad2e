package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Order sides and statuses as Bybit spells them
const (
	SideBuy  = "Buy"
	SideSell = "Sell"

	StatusNew             = "New"
	StatusPartiallyFilled = "PartiallyFilled"
	StatusFilled          = "Filled"
	StatusCancelled       = "Cancelled"
	StatusRejected        = "Rejected"
	StatusDeactivated     = "Deactivated"
	// PartiallyFilledCanceled is final: part executed, remainder cancelled
	StatusPartiallyFilledCanceled = "PartiallyFilledCanceled"
)

// PlaceOrderParams describes a market order
type PlaceOrderParams struct {
	Symbol      string
	Side        string
	Qty         string
	OrderLinkID string
	ReduceOnly  bool
}

// Order is the subset of the v5 order object the engine reads
type Order struct {
	OrderID     string
	OrderLinkID string
	Symbol      string
	Side        string
	Status      string
	AvgPrice    float64
	CumExecQty  float64
	CumExecFee  float64
	UpdatedAt   time.Time
}

// Final reports whether the order can no longer change
func (o Order) Final() bool {
	switch o.Status {
	case StatusFilled, StatusCancelled, StatusRejected, StatusDeactivated, StatusPartiallyFilledCanceled:
		return true
	}
	return false
}

type rawOrder struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderStatus string `json:"orderStatus"`
	AvgPrice    string `json:"avgPrice"`
	CumExecQty  string `json:"cumExecQty"`
	CumExecFee  string `json:"cumExecFee"`
	UpdatedTime string `json:"updatedTime"`
}

func (r rawOrder) order() Order {
	updated, _ := parseTimestamp(r.UpdatedTime)
	return Order{
		OrderID:     r.OrderID,
		OrderLinkID: r.OrderLinkID,
		Symbol:      r.Symbol,
		Side:        r.Side,
		Status:      r.OrderStatus,
		AvgPrice:    mustFloat(r.AvgPrice),
		CumExecQty:  mustFloat(r.CumExecQty),
		CumExecFee:  mustFloat(r.CumExecFee),
		UpdatedAt:   updated,
	}
}

// PlaceOrder submits a market order and returns the exchange order id
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (string, error) {
	if params.Symbol == "" || params.Qty == "" {
		return "", fmt.Errorf("symbol and qty are required")
	}
	if params.Side != SideBuy && params.Side != SideSell {
		return "", fmt.Errorf("invalid order side %q", params.Side)
	}

	apiParams := map[string]interface{}{
		"category":  CategoryLinear,
		"symbol":    params.Symbol,
		"side":      params.Side,
		"orderType": "Market",
		"qty":       params.Qty,
	}
	if params.OrderLinkID != "" {
		apiParams["orderLinkId"] = params.OrderLinkID
	}
	if params.ReduceOnly {
		apiParams["reduceOnly"] = true
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to place order: %w", err)
	}

	var placed struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := decodeResult("place order", result, &placed); err != nil {
		return "", err
	}
	if placed.OrderID == "" {
		return "", fmt.Errorf("bybit place order: empty order id")
	}
	return placed.OrderID, nil
}

// CancelOrder cancels an open order
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": CategoryLinear,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	return decodeResult("cancel order", result, nil)
}

// GetOrder looks an order up among realtime orders first, then history
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (Order, error) {
	params := map[string]interface{}{
		"category": CategoryLinear,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	if err := c.wait(ctx); err != nil {
		return Order{}, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("failed to get open orders: %w", err)
	}
	if order, ok, err := firstOrder("open orders", result); err != nil || ok {
		return order, err
	}

	if err := c.wait(ctx); err != nil {
		return Order{}, err
	}
	result, err = c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("failed to get order history: %w", err)
	}
	order, ok, err := firstOrder("order history", result)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, &APIError{Code: ErrCodeOrderNotFound, Message: "order not found: " + orderID, Operation: "get order"}
	}
	return order, nil
}

func firstOrder(operation string, result interface{}) (Order, bool, error) {
	var list struct {
		List []rawOrder `json:"list"`
	}
	if err := decodeResult(operation, result, &list); err != nil {
		return Order{}, false, err
	}
	if len(list.List) == 0 {
		return Order{}, false, nil
	}
	return list.List[0].order(), true, nil
}

// Position is a one-way mode linear position
type Position struct {
	Symbol     string
	Side       string // Buy, Sell or "" when flat
	Size       float64
	EntryPrice float64
	MarkPrice  float64
	UpdatedAt  time.Time
}

// GetPosition returns the current position for a symbol
func (c *Client) GetPosition(ctx context.Context, symbol string) (Position, error) {
	params := map[string]interface{}{
		"category": CategoryLinear,
		"symbol":   symbol,
	}
	if err := c.wait(ctx); err != nil {
		return Position{}, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return Position{}, fmt.Errorf("failed to get positions: %w", err)
	}

	var list struct {
		List []struct {
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Size        string `json:"size"`
			AvgPrice    string `json:"avgPrice"`
			MarkPrice   string `json:"markPrice"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := decodeResult("position list", result, &list); err != nil {
		return Position{}, err
	}

	pos := Position{Symbol: symbol}
	for _, p := range list.List {
		size := mustFloat(p.Size)
		if p.Symbol != symbol || size == 0 {
			continue
		}
		pos.Side = p.Side
		pos.Size = size
		pos.EntryPrice = mustFloat(p.AvgPrice)
		pos.MarkPrice = mustFloat(p.MarkPrice)
		pos.UpdatedAt, _ = parseTimestamp(p.UpdatedTime)
		break
	}
	return pos, nil
}

// SetLeverage sets buy and sell leverage. An unchanged leverage is not an error.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     CategoryLinear,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		return fmt.Errorf("failed to set leverage: %w", err)
	}
	err = decodeResult("set leverage", result, nil)
	if apiErr, ok := asAPIError(err); ok && apiErr.Code == ErrCodeLeverageNotModified {
		return nil
	}
	return err
}
