package safety

import (
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Err converts a failed result into an error
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Code, r.Message)
}

func invalid(code, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Code: code, Message: fmt.Sprintf(format, args...)}
}

var valid = ValidationResult{Valid: true}

// ValidatePrice rejects non-finite, non-positive and implausible prices
func ValidatePrice(price float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(price) || math.IsInf(price, 0):
		return invalid("INVALID_PRICE", "price for %s is not finite", symbol)
	case price <= 0:
		return invalid("INVALID_PRICE", "price %.8f for %s must be positive", price, symbol)
	case price > 1e10:
		return invalid("PRICE_OUT_OF_BOUNDS", "price %.8f for %s exceeds reasonable bounds", price, symbol)
	}
	return valid
}

// ValidateQuantity rejects non-finite and non-positive quantities
func ValidateQuantity(quantity float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(quantity) || math.IsInf(quantity, 0):
		return invalid("INVALID_QUANTITY", "quantity for %s is not finite", symbol)
	case quantity <= 0:
		return invalid("INVALID_QUANTITY", "quantity %.8f for %s must be positive", quantity, symbol)
	}
	return valid
}

// ValidateSymbol checks an exchange symbol such as BTCUSDT
func ValidateSymbol(symbol string) ValidationResult {
	if strings.TrimSpace(symbol) != symbol || symbol == "" {
		return invalid("SYMBOL_INVALID", "symbol %q must be non-empty without surrounding spaces", symbol)
	}
	if len(symbol) < 3 || len(symbol) > 20 {
		return invalid("SYMBOL_INVALID", "symbol %q must be 3 to 20 characters", symbol)
	}
	for _, r := range symbol {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return invalid("SYMBOL_INVALID", "symbol %q must be upper-case alphanumeric", symbol)
		}
	}
	return valid
}

// ValidatePercentageRange checks min <= value <= max
func ValidatePercentageRange(value, min, max float64, field string) ValidationResult {
	if math.IsNaN(value) || value < min || value > max {
		return invalid("PERCENT_OUT_OF_RANGE", "%s %.4f must be between %.4f and %.4f", field, value, min, max)
	}
	return valid
}

// ValidateOrder is the last check before an order leaves the engine. Entry
// orders must respect the lot size; reduce-only exits only need a sane size.
func ValidateOrder(req exchange.OrderRequest, lot exchange.LotSize) ValidationResult {
	if r := ValidateSymbol(req.Symbol); !r.Valid {
		return r
	}
	if req.Side != exchange.OrderSideBuy && req.Side != exchange.OrderSideSell {
		return invalid("INVALID_SIDE", "order side %q", req.Side)
	}
	if r := ValidateQuantity(req.Size, req.Symbol); !r.Valid {
		return r
	}
	if req.ReduceOnly {
		return valid
	}
	if r := ValidatePrice(req.Price, req.Symbol); !r.Valid {
		return r
	}
	if lot.MinOrderQty > 0 && req.Size < lot.MinOrderQty {
		return invalid("QUANTITY_BELOW_MIN", "quantity %.8f below minimum %.8f", req.Size, lot.MinOrderQty)
	}
	if lot.MaxOrderQty > 0 && req.Size > lot.MaxOrderQty {
		return invalid("QUANTITY_ABOVE_MAX", "quantity %.8f above maximum %.8f", req.Size, lot.MaxOrderQty)
	}
	if lot.MinNotional > 0 && req.Size*req.Price < lot.MinNotional {
		return invalid("NOTIONAL_BELOW_MIN", "notional %.4f below minimum %.4f", req.Size*req.Price, lot.MinNotional)
	}
	return valid
}
