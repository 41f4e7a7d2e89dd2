package payments

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/marketwell/payhub/libs/clients/walletpay"
	"github.com/marketwell/payhub/libs/datastore"
	errorutils "github.com/marketwell/payhub/libs/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubWalletClient struct {
	pay    func(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error)
	payout func(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error)
	status func(ctx context.Context, orderID string) (*walletpay.Response, error)
}

func (s *stubWalletClient) Pay(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error) {
	return s.pay(ctx, payload)
}

func (s *stubWalletClient) Payout(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error) {
	return s.payout(ctx, payload)
}

func (s *stubWalletClient) Status(ctx context.Context, orderID string) (*walletpay.Response, error) {
	return s.status(ctx, orderID)
}

func uahPayout(t *testing.T, beneficiaryID *uuid.UUID) *Transaction {
	tx, err := NewTransaction(TransactionDraft{
		Amount:        decimal.NewFromInt(5000),
		Currency:      "UAH",
		Purpose:       "supplier payout",
		BeneficiaryID: beneficiaryID,
	}, FlowTypeDebit, ProviderWallet, "backoffice:alice")
	assert.NoError(t, err)
	return tx
}

func TestWalletProvider_InitiateIncoming(t *testing.T) {
	var gotPayload walletpay.Payload
	client := &stubWalletClient{
		pay: func(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error) {
			gotPayload = payload
			return &walletpay.Response{Result: "ok", PaymentID: 42}, nil
		},
	}

	provider := NewWalletProvider(client, nil)

	tx, err := NewTransaction(TransactionDraft{
		Amount:   decimal.NewFromInt(5000),
		Currency: "UAH",
		Purpose:  "order payment",
	}, FlowTypeCredit, ProviderWallet, "backoffice:alice")
	assert.NoError(t, err)

	info, err := provider.InitiateIncoming(context.Background(), tx, false)
	assert.NoError(t, err)

	assert.Equal(t, "5000", gotPayload.Amount)
	assert.Equal(t, "UAH", gotPayload.Currency)
	assert.Equal(t, tx.Reference, gotPayload.OrderID)
	assert.Equal(t, int64(42), tx.ExternalReferences["walletPaymentId"])
	assert.Equal(t, tx.Reference, info.TransactionID)
	assert.Equal(t, TransactionStatusInitiated, tx.Status)
}

func TestWalletProvider_PayoutMissingWalletAccount(t *testing.T) {
	beneficiaryID := uuid.NewV4()

	var payoutCalled bool
	client := &stubWalletClient{
		payout: func(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error) {
			payoutCalled = true
			return &walletpay.Response{Result: "ok"}, nil
		},
	}
	ds := &mockDatastore{
		getBeneficiary: func(ctx context.Context, id uuid.UUID) (*Beneficiary, error) {
			return &Beneficiary{ID: id, Name: "supplier"}, nil
		},
	}

	provider := NewWalletProvider(client, ds)

	_, err := provider.InitiateOutgoing(context.Background(), uahPayout(t, &beneficiaryID), false)
	assert.True(t, errors.Is(err, errorutils.ErrBeneficiaryNotFound))
	assert.True(t, errors.Is(err, errorutils.ErrNotFound))
	// no signed request may leave the process
	assert.False(t, payoutCalled)
}

func TestWalletProvider_PayoutMissingBeneficiary(t *testing.T) {
	provider := NewWalletProvider(&stubWalletClient{}, &mockDatastore{})

	_, err := provider.InitiateOutgoing(context.Background(), uahPayout(t, nil), false)
	assert.True(t, errors.Is(err, errorutils.ErrBeneficiaryNotFound))
}

func TestWalletProvider_Payout(t *testing.T) {
	beneficiaryID := uuid.NewV4()

	var gotPayload walletpay.Payload
	client := &stubWalletClient{
		payout: func(ctx context.Context, payload walletpay.Payload) (*walletpay.Response, error) {
			gotPayload = payload
			return &walletpay.Response{Result: "ok", PaymentID: 7}, nil
		},
	}
	ds := &mockDatastore{
		getBeneficiary: func(ctx context.Context, id uuid.UUID) (*Beneficiary, error) {
			return &Beneficiary{
				ID:            id,
				Name:          "supplier",
				WalletAccount: datastore.NullString{NullString: sql.NullString{String: "acct-9", Valid: true}},
			}, nil
		},
	}

	provider := NewWalletProvider(client, ds)

	tx, err := provider.InitiateOutgoing(context.Background(), uahPayout(t, &beneficiaryID), false)
	assert.NoError(t, err)
	assert.Equal(t, "acct-9", gotPayload.ReceiverAccount)
	assert.Equal(t, int64(7), tx.ExternalReferences["walletPaymentId"])
}

func TestWalletProvider_Settle(t *testing.T) {
	client := &stubWalletClient{
		status: func(ctx context.Context, orderID string) (*walletpay.Response, error) {
			return &walletpay.Response{
				Result:        "ok",
				Status:        walletpay.StatusSuccess,
				TransactionID: "w-1",
			}, nil
		},
	}

	provider := NewWalletProvider(client, nil)

	tx := uahPayout(t, nil)
	tx.Reference = "order-1"

	settled, err := provider.Settle(context.Background(), tx)
	assert.NoError(t, err)
	assert.Equal(t, TransactionStatusSettled, settled.Status)
	assert.Equal(t, "w-1", settled.ExternalReferences["walletTransactionId"])
}

func TestWalletProvider_SettlePending(t *testing.T) {
	client := &stubWalletClient{
		status: func(ctx context.Context, orderID string) (*walletpay.Response, error) {
			return &walletpay.Response{Result: "ok", Status: "processing"}, nil
		},
	}

	provider := NewWalletProvider(client, nil)

	tx := uahPayout(t, nil)
	_, err := provider.Settle(context.Background(), tx)
	assert.Error(t, err)
	assert.Equal(t, TransactionStatusInitiated, tx.Status)
}

func TestWalletProvider_HealthGating(t *testing.T) {
	priorPolicy := probeRetryPolicy
	probeRetryPolicy = singleAttemptPolicy
	t.Cleanup(func() { probeRetryPolicy = priorPolicy })

	statusErr := errors.New("wallet down")
	client := &stubWalletClient{
		status: func(ctx context.Context, orderID string) (*walletpay.Response, error) {
			if statusErr != nil {
				return nil, statusErr
			}
			return &walletpay.Response{Result: "ok"}, nil
		},
	}

	provider := NewWalletProvider(client, nil)
	provider.Probe(context.Background())
	assert.False(t, provider.IsHealthy())

	_, err := provider.InitiateIncoming(context.Background(), uahPayout(t, nil), false)
	assert.True(t, errors.Is(err, errorutils.ErrHealthCheckFailed))

	statusErr = nil
	provider.Probe(context.Background())
	assert.True(t, provider.IsHealthy())
}
