package httputil

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dealscope/config"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Clients struct {
	API      *resty.Client // JSON collaborators
	Scraping *http.Client  // HTML comparables pages
}

func NewClients(cfg config.ValuationConfig) *Clients {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	api := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		api.SetAuthToken(cfg.APIKey)
	}

	return &Clients{
		API:      api,
		Scraping: &http.Client{Timeout: timeout},
	}
}

// SetBrowserHeaders makes a page request look like a browser visit
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
