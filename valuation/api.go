package valuation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"dealscope/models"
)

// APIProvider queries a JSON automated-valuation endpoint
type APIProvider struct {
	client *resty.Client
	logger *zap.Logger
}

func NewAPIProvider(client *resty.Client, logger *zap.Logger) *APIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIProvider{client: client, logger: logger}
}

type estimateResponse struct {
	Estimate   *float64 `json:"estimate"`
	Confidence string   `json:"confidence"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (p *APIProvider) Estimate(ctx context.Context, prop *models.Property) (*float64, error) {
	if prop.Address == "" {
		return nil, nil
	}

	result := new(estimateResponse)
	apiErr := new(apiError)

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("address", prop.Address).
		SetResult(result).
		SetError(apiErr).
		Get("/v1/estimate")
	if err != nil {
		return nil, fmt.Errorf("request estimate: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, nil
	case resp.IsError():
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("estimate api: %d %s", resp.StatusCode(), msg)
	}

	if result.Estimate == nil || *result.Estimate <= 0 {
		return nil, nil
	}

	p.logger.Debug("valuation estimate",
		zap.String("property_id", prop.ID.String()),
		zap.Float64("estimate", *result.Estimate),
		zap.String("confidence", result.Confidence))

	return result.Estimate, nil
}
