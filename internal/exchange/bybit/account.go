package bybit

import (
	"context"
	"fmt"
)

// AccountType represents different account types
type AccountType string

const (
	AccountTypeUnified  AccountType = "UNIFIED"
	AccountTypeContract AccountType = "CONTRACT"
)

// GetEquity returns the total equity of the wallet in USD
func (c *Client) GetEquity(ctx context.Context, accountType AccountType) (float64, error) {
	if accountType == "" {
		accountType = AccountTypeUnified
	}
	params := map[string]interface{}{
		"accountType": string(accountType),
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	var wallet struct {
		List []struct {
			AccountType string `json:"accountType"`
			TotalEquity string `json:"totalEquity"`
		} `json:"list"`
	}
	if err := decodeResult("wallet balance", result, &wallet); err != nil {
		return 0, err
	}
	if len(wallet.List) == 0 {
		return 0, fmt.Errorf("no %s account in wallet response", accountType)
	}
	equity, err := parseFloat64(wallet.List[0].TotalEquity)
	if err != nil {
		return 0, fmt.Errorf("invalid total equity %q: %w", wallet.List[0].TotalEquity, err)
	}
	return equity, nil
}
