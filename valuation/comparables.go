package valuation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"dealscope/httputil"
	"dealscope/models"
	"dealscope/money"
)

// ComparablesProvider scrapes a comparable-sales page and uses the median
// sale price as the estimate.
type ComparablesProvider struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewComparablesProvider(client *http.Client, baseURL string, logger *zap.Logger) *ComparablesProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComparablesProvider{
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

func (c *ComparablesProvider) Estimate(ctx context.Context, p *models.Property) (*float64, error) {
	if p.Address == "" {
		return nil, nil
	}

	pageURL := fmt.Sprintf("%s/comparables?address=%s", c.baseURL, url.QueryEscape(p.Address))
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httputil.SetBrowserHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch comparables: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	prices, err := ParseComparables(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("comparables parsed",
		zap.String("property_id", p.ID.String()),
		zap.Int("count", len(prices)))

	return Median(prices), nil
}

// ParseComparables extracts sale prices from a comparables page. A price is
// read from the data-price attribute of each .comparable row, falling back
// to the row's .price text. Rows without a readable price are skipped.
func ParseComparables(r io.Reader) ([]float64, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var prices []float64
	doc.Find(".comparable").Each(func(i int, s *goquery.Selection) {
		raw, ok := s.Attr("data-price")
		if !ok || strings.TrimSpace(raw) == "" {
			raw = s.Find(".price").First().Text()
		}
		price, err := money.ParseCurrency(raw)
		if err != nil || price <= 0 {
			return
		}
		prices = append(prices, price)
	})
	return prices, nil
}

// Median returns the middle value, or nil for an empty slice
func Median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	m := sorted[mid]
	if len(sorted)%2 == 0 {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}
