package payments

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/marketwell/payhub/libs/backoff"
	"github.com/marketwell/payhub/libs/backoff/retrypolicy"
	"github.com/marketwell/payhub/libs/clients/cardgateway"
	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/marketwell/payhub/libs/logging"
	uuid "github.com/satori/go.uuid"
)

// the policy is stateful, each probe gets its own
var probeRetryPolicy = func() retrypolicy.Retry {
	policy, _ := retrypolicy.NewFixed(2*time.Second, 3)
	return policy
}

// CardProvider drives the acquiring gateway rail. The gateway settles in a
// single currency, amounts are converted through the rate table before
// every call.
type CardProvider struct {
	client             cardgateway.Client
	converter          *Converter
	settlementCurrency string

	healthy atomic.Bool
}

// NewCardProvider returns a new card gateway provider
func NewCardProvider(client cardgateway.Client, converter *Converter, settlementCurrency string) *CardProvider {
	p := &CardProvider{
		client:             client,
		converter:          converter,
		settlementCurrency: settlementCurrency,
	}
	p.healthy.Store(true)
	return p
}

// Name returns the provider tag
func (p *CardProvider) Name() string {
	return ProviderCardGateway
}

// IsHealthy reports the result of the last probe
func (p *CardProvider) IsHealthy() bool {
	return p.healthy.Load()
}

// InitiateIncoming starts a payment on the gateway. A return url selects
// the hosted page flow and yields a checkout url, without one the charge
// runs server to server and yields an authorization code. Card payments
// settle only after capture, immediate settlement is not a thing on this
// rail.
func (p *CardProvider) InitiateIncoming(ctx context.Context, tx *Transaction, settleImmediately bool) (*CheckoutInfo, error) {
	if !p.IsHealthy() {
		return nil, errorutils.ErrHealthCheckFailed
	}
	if settleImmediately {
		return nil, errorutils.ErrImmediateSettlementUnsupported
	}

	amount, err := p.converter.Convert(ctx, tx.Currency, p.settlementCurrency, tx.Amount)
	if err != nil {
		return nil, err
	}

	tx.Reference = uuid.NewV4().String()

	payload := cardgateway.NewTransactionPayload(amount, p.settlementCurrency, tx.Reference)
	payload.Description = tx.description()

	if tx.ReturnURL == "" {
		resp, err := p.client.Authorize(ctx, payload)
		if err != nil {
			return nil, err
		}

		tx.TransactionID = resp.TransactionID
		tx.AddExternalReference("gatewayTransactionId", resp.TransactionID)
		tx.AddExternalReference("authorizationCode", resp.AuthorizationCode)

		return &CheckoutInfo{
			TransactionID: tx.TransactionID,
			Reference:     tx.Reference,
			AuthCode:      resp.AuthorizationCode,
		}, nil
	}

	payload.ReturnURL = tx.ReturnURL

	resp, err := p.client.Initiate(ctx, payload)
	if err != nil {
		return nil, err
	}

	tx.TransactionID = resp.TransactionID
	tx.AddExternalReference("gatewayTransactionId", resp.TransactionID)
	tx.AddExternalReference("checkoutUrl", resp.CheckoutURL)

	return &CheckoutInfo{
		TransactionID: tx.TransactionID,
		Reference:     tx.Reference,
		CheckoutURL:   resp.CheckoutURL,
	}, nil
}

// InitiateOutgoing is not offered on the card rail
func (p *CardProvider) InitiateOutgoing(ctx context.Context, tx *Transaction, settleImmediately bool) (*Transaction, error) {
	return nil, errorutils.ErrOperationUnsupported
}

// Settle captures a previously authorized payment on the gateway
func (p *CardProvider) Settle(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if !p.IsHealthy() {
		return nil, errorutils.ErrHealthCheckFailed
	}
	if tx.IsTerminal() {
		return nil, errorutils.ErrTransactionFinalized
	}

	gatewayTransactionID, ok := tx.ExternalReferences["gatewayTransactionId"].(string)
	if !ok || gatewayTransactionID == "" {
		return nil, errorutils.New(nil, "transaction is missing its gateway reference", tx.TransactionID)
	}

	amount, err := p.converter.Convert(ctx, tx.Currency, p.settlementCurrency, tx.Amount)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Settle(ctx, gatewayTransactionID, cardgateway.SettlePayload{
		Amount:    amount.String(),
		Currency:  p.settlementCurrency,
		Reference: tx.Reference,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Transition(TransactionStatusSettled); err != nil {
		return nil, err
	}
	tx.AddExternalReference("settlementStatus", resp.Status)
	return tx, nil
}

// Probe refreshes the health flag off the gateway liveness endpoint
func (p *CardProvider) Probe(ctx context.Context) {
	logger := logging.Logger(ctx, "payments.CardProvider.Probe")

	check := func() (interface{}, error) {
		return nil, p.client.CheckHealth(ctx)
	}

	_, err := backoff.Retry(ctx, check, probeRetryPolicy(), func(error) bool { return true })
	if err != nil {
		logger.Warn().Err(err).Msg("card gateway probe failed, gating calls")
	}
	p.healthy.Store(err == nil)
}

// ProbeJob adapts Probe to the job worker shape
func (p *CardProvider) ProbeJob(ctx context.Context) (bool, error) {
	p.Probe(ctx)
	return true, nil
}
