package payments

import (
	"context"
	"sync"
	"time"

	"github.com/marketwell/payhub/libs/backoff"
	"github.com/marketwell/payhub/libs/backoff/retrypolicy"
	"github.com/marketwell/payhub/libs/clients/rates"
	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/marketwell/payhub/libs/logging"
	"github.com/shopspring/decimal"
)

// AnchorCurrency is the fixed anchor every cached rate is quoted in.
const AnchorCurrency = "USD"

// the policy is stateful, each refresh gets its own
var refreshRetryPolicy = func() retrypolicy.Retry {
	policy, _ := retrypolicy.NewFixed(5*time.Second, 3)
	return policy
}

// Converter converts amounts between currencies through a cached rate
// table. Each rate is the anchor value of one unit of the currency. The
// table is swapped wholesale on refresh, readers never observe a partial
// update.
type Converter struct {
	client    rates.Client
	datastore Datastore

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewConverter returns a converter backed by the rate feed and the
// persisted rates table
func NewConverter(client rates.Client, datastore Datastore) *Converter {
	return &Converter{
		client:    client,
		datastore: datastore,
		rates:     map[string]decimal.Decimal{},
	}
}

func (c *Converter) rate(currency string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rate, ok := c.rates[currency]
	if !ok {
		return decimal.Zero, errorutils.ErrCurrencyNotFound
	}
	return rate, nil
}

// Convert the amount from the base currency into the target currency,
// rounding half to even at two places.
func (c *Converter) Convert(ctx context.Context, base, target string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errorutils.ErrNonPositiveAmount
	}
	if base == target {
		return amount, nil
	}

	baseRate, err := c.rate(base)
	if err != nil {
		return decimal.Zero, err
	}
	targetRate, err := c.rate(target)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(baseRate).Div(targetRate).RoundBank(2), nil
}

func validRates(anchor string, resp *rates.RatesResponse) bool {
	if resp.Base != anchor || len(resp.Rates) == 0 {
		return false
	}
	for _, rate := range resp.Rates {
		if !rate.IsPositive() {
			return false
		}
	}
	return true
}

// Refresh pulls a fresh snapshot from the rate feed, persisting it and
// swapping the cache atomically. On failure the prior table stays in
// effect.
func (c *Converter) Refresh(ctx context.Context) error {
	logger := logging.Logger(ctx, "payments.Converter.Refresh")

	fetch := func() (interface{}, error) {
		return c.client.FetchRates(ctx)
	}

	resp, err := backoff.Retry(ctx, fetch, refreshRetryPolicy(), func(error) bool { return true })
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch rates, keeping prior table")
		return err
	}

	snapshot := resp.(*rates.RatesResponse)
	if !validRates(AnchorCurrency, snapshot) {
		logger.Error().Str("base", snapshot.Base).Msg("rejecting rates snapshot")
		return errorutils.ErrStaleRates
	}

	if err := c.datastore.ReplaceCurrencyRates(ctx, snapshot.Base, snapshot.Rates); err != nil {
		logger.Error().Err(err).Msg("failed to persist rates snapshot")
		return err
	}

	c.mu.Lock()
	c.rates = snapshot.Rates
	c.mu.Unlock()

	logger.Info().Int("currencies", len(snapshot.Rates)).Msg("rates table refreshed")
	return nil
}

// Seed loads the persisted rates table into the cache, so a rate feed
// outage across a restart does not empty the converter.
func (c *Converter) Seed(ctx context.Context) error {
	persisted, err := c.datastore.GetCurrencyRates(ctx)
	if err != nil {
		return err
	}
	if len(persisted) == 0 {
		return nil
	}

	c.mu.Lock()
	c.rates = persisted
	c.mu.Unlock()
	return nil
}

// RefreshJob adapts Refresh to the job worker shape
func (c *Converter) RefreshJob(ctx context.Context) (bool, error) {
	return true, c.Refresh(ctx)
}
