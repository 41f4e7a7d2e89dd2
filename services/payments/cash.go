package payments

import (
	"context"

	errorutils "github.com/marketwell/payhub/libs/errors"
	uuid "github.com/satori/go.uuid"
)

// CashProvider handles over-the-counter cash payments. There is no remote
// party, the money changes hands at the desk, so every initiation must
// settle immediately and the rail is always healthy.
type CashProvider struct{}

// NewCashProvider returns a new cash provider
func NewCashProvider() *CashProvider {
	return &CashProvider{}
}

// Name returns the provider tag
func (p *CashProvider) Name() string {
	return ProviderCash
}

func (p *CashProvider) initiate(tx *Transaction, settleImmediately bool) error {
	if !settleImmediately {
		return errorutils.ErrImmediateSettlementRequired
	}

	tx.TransactionID = uuid.NewV4().String()
	tx.Reference = tx.TransactionID

	return tx.Transition(TransactionStatusSettled)
}

// InitiateIncoming accepts cash over the counter, minting local
// identifiers and settling at creation.
func (p *CashProvider) InitiateIncoming(ctx context.Context, tx *Transaction, settleImmediately bool) (*CheckoutInfo, error) {
	if err := p.initiate(tx, settleImmediately); err != nil {
		return nil, err
	}
	return &CheckoutInfo{
		TransactionID: tx.TransactionID,
		Reference:     tx.Reference,
		Settled:       true,
	}, nil
}

// InitiateOutgoing pays cash out over the counter, settling at creation
func (p *CashProvider) InitiateOutgoing(ctx context.Context, tx *Transaction, settleImmediately bool) (*Transaction, error) {
	if err := p.initiate(tx, settleImmediately); err != nil {
		return nil, err
	}
	return tx, nil
}

// Settle transitions the transaction to settled. Cash transactions settle
// at creation, so by the time this runs the transition always fails with
// a finalized error.
func (p *CashProvider) Settle(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if err := tx.Transition(TransactionStatusSettled); err != nil {
		return nil, err
	}
	return tx, nil
}

// IsHealthy always holds for the cash rail
func (p *CashProvider) IsHealthy() bool {
	return true
}
