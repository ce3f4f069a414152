// Package valuation fetches comparable-value estimates for properties from
// outside market data sources. A nil estimate means no data is available,
// which the equity pillar reports as needing input.
package valuation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dealscope/config"
	"dealscope/httputil"
	"dealscope/models"
)

// Provider estimates market value for a property
type Provider interface {
	Estimate(ctx context.Context, p *models.Property) (*float64, error)
}

// New picks the configured provider. It returns nil when no provider is
// configured.
func New(cfg config.ValuationConfig, clients *httputil.Clients, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "api":
		return NewAPIProvider(clients.API, logger), nil
	case "comparables":
		return NewComparablesProvider(clients.Scraping, cfg.BaseURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown valuation provider %q", cfg.Provider)
	}
}
