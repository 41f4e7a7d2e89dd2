package payments

import (
	"context"
	"sync/atomic"

	"github.com/marketwell/payhub/libs/backoff"
	"github.com/marketwell/payhub/libs/clients/walletpay"
	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/marketwell/payhub/libs/logging"
	uuid "github.com/satori/go.uuid"
)

// WalletProvider drives the hosted P2P wallet rail. Payouts require the
// beneficiary to have a registered wallet account, the lookup happens
// before any signed request leaves the process.
type WalletProvider struct {
	client    walletpay.Client
	datastore Datastore

	healthy atomic.Bool
}

// NewWalletProvider returns a new wallet provider
func NewWalletProvider(client walletpay.Client, datastore Datastore) *WalletProvider {
	p := &WalletProvider{
		client:    client,
		datastore: datastore,
	}
	p.healthy.Store(true)
	return p
}

// Name returns the provider tag
func (p *WalletProvider) Name() string {
	return ProviderWallet
}

// IsHealthy reports the result of the last probe
func (p *WalletProvider) IsHealthy() bool {
	return p.healthy.Load()
}

// InitiateIncoming starts collecting funds from a payer wallet. The wallet
// settles asynchronously, confirmation arrives on the sink.
func (p *WalletProvider) InitiateIncoming(ctx context.Context, tx *Transaction, settleImmediately bool) (*CheckoutInfo, error) {
	if !p.IsHealthy() {
		return nil, errorutils.ErrHealthCheckFailed
	}
	if settleImmediately {
		return nil, errorutils.ErrImmediateSettlementUnsupported
	}

	tx.Reference = uuid.NewV4().String()

	resp, err := p.client.Pay(ctx, walletpay.Payload{
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency,
		Description: tx.description(),
		OrderID:     tx.Reference,
	})
	if err != nil {
		return nil, err
	}

	tx.TransactionID = tx.Reference
	tx.AddExternalReference("walletPaymentId", resp.PaymentID)

	return &CheckoutInfo{
		TransactionID: tx.TransactionID,
		Reference:     tx.Reference,
	}, nil
}

// InitiateOutgoing credits funds to the beneficiary wallet account
func (p *WalletProvider) InitiateOutgoing(ctx context.Context, tx *Transaction, settleImmediately bool) (*Transaction, error) {
	if !p.IsHealthy() {
		return nil, errorutils.ErrHealthCheckFailed
	}
	if settleImmediately {
		return nil, errorutils.ErrImmediateSettlementUnsupported
	}
	if tx.BeneficiaryID == nil {
		return nil, errorutils.ErrBeneficiaryNotFound
	}

	beneficiary, err := p.datastore.GetBeneficiary(ctx, *tx.BeneficiaryID)
	if err != nil {
		return nil, err
	}
	if !beneficiary.WalletAccount.Valid || beneficiary.WalletAccount.String == "" {
		return nil, errorutils.ErrBeneficiaryNotFound
	}

	tx.Reference = uuid.NewV4().String()

	resp, err := p.client.Payout(ctx, walletpay.Payload{
		Amount:          tx.Amount.String(),
		Currency:        tx.Currency,
		Description:     tx.description(),
		OrderID:         tx.Reference,
		ReceiverAccount: beneficiary.WalletAccount.String,
	})
	if err != nil {
		return nil, err
	}

	tx.TransactionID = tx.Reference
	tx.AddExternalReference("walletPaymentId", resp.PaymentID)

	return tx, nil
}

// Settle confirms the remote payment reached its terminal success state
// and finalizes the transaction.
func (p *WalletProvider) Settle(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if !p.IsHealthy() {
		return nil, errorutils.ErrHealthCheckFailed
	}
	if tx.IsTerminal() {
		return nil, errorutils.ErrTransactionFinalized
	}

	resp, err := p.client.Status(ctx, tx.Reference)
	if err != nil {
		return nil, err
	}
	if resp.Status != walletpay.StatusSuccess {
		return nil, errorutils.New(nil, "wallet payment not settled remotely", resp.Status)
	}

	if err := tx.Transition(TransactionStatusSettled); err != nil {
		return nil, err
	}
	if resp.TransactionID != "" {
		tx.AddExternalReference("walletTransactionId", resp.TransactionID)
	}
	return tx, nil
}

// probeOrderID is a reserved order id the wallet api answers status
// lookups for without an underlying payment.
const probeOrderID = "00000000-0000-0000-0000-000000000000"

// Probe refreshes the health flag off a status round trip
func (p *WalletProvider) Probe(ctx context.Context) {
	logger := logging.Logger(ctx, "payments.WalletProvider.Probe")

	check := func() (interface{}, error) {
		return p.client.Status(ctx, probeOrderID)
	}

	_, err := backoff.Retry(ctx, check, probeRetryPolicy(), func(error) bool { return true })
	if err != nil {
		logger.Warn().Err(err).Msg("wallet probe failed, gating calls")
	}
	p.healthy.Store(err == nil)
}

// ProbeJob adapts Probe to the job worker shape
func (p *WalletProvider) ProbeJob(ctx context.Context) (bool, error) {
	p.Probe(ctx)
	return true, nil
}
