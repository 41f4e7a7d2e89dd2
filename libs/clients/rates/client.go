// Package rates provides a client to the exchange rates feed.
package rates

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/marketwell/payhub/libs/clients"
	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const feedCacheKey = "latest"

// Client abstracts over the underlying client
type Client interface {
	FetchRates(ctx context.Context) (*RatesResponse, error)
}

// Config holds the connection parameters of the rates feed
type Config struct {
	Server string
	AppID  string
	// Symbols restricts the feed to the listed currencies, empty fetches all
	Symbols []string
}

type latestParams struct {
	Symbols []string `url:"symbols,omitempty,comma"`
}

// GenerateQueryString - implement the QueryStringBody interface
func (p *latestParams) GenerateQueryString() (url.Values, error) {
	return query.Values(p)
}

// HTTPClient wraps http.Client for interacting with the rates feed
type HTTPClient struct {
	client *clients.SimpleHTTPClient
	conf   Config
	cache  *cache.Cache
}

// New returns a new HTTPClient, retrieving the base URL from the config
func New(conf Config) (Client, error) {
	client, err := clients.New(conf.Server, "")
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		client: client,
		conf:   conf,
		// feed updates are infrequent, a short response cache keeps
		// concurrent refreshes from hammering the remote
		cache: cache.New(time.Minute, 5*time.Minute),
	}, nil
}

// RatesResponse is a rates feed snapshot, quoted against the base currency
type RatesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FetchRates retrieves the latest rates snapshot from the feed
func (c *HTTPClient) FetchRates(ctx context.Context) (*RatesResponse, error) {
	if cached, found := c.cache.Get(feedCacheKey); found {
		return cached.(*RatesResponse), nil
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, "/api/latest.json", nil,
		&latestParams{Symbols: c.conf.Symbols})
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-App-Id", c.conf.AppID)

	var body RatesResponse
	_, err = c.client.Do(ctx, req, &body)
	if err != nil {
		return nil, err
	}

	c.cache.Set(feedCacheKey, &body, cache.DefaultExpiration)
	return &body, nil
}
