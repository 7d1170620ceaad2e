package adapters

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
)

// NewGateway creates the gateway selected by config
func NewGateway(config exchange.Config, log *logger.Logger) (exchange.Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(config.Name)) {
	case exchange.NameBybit:
		return NewBybitGateway(config.Bybit, log)
	case exchange.NamePaper:
		return NewPaperGateway(*config.Paper), nil
	}
	return nil, fmt.Errorf("gateway %q is not supported", config.Name)
}
