package payments

import (
	"errors"
	"testing"

	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newDraft() TransactionDraft {
	return TransactionDraft{
		Amount:   decimal.NewFromInt(10000),
		Currency: "USD",
		Purpose:  "order payment",
	}
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, "cash", "backoffice:alice")
	assert.NoError(t, err)

	assert.Equal(t, TransactionStatusInitiated, tx.Status)
	assert.Equal(t, FlowTypeCredit, tx.FlowType)
	assert.Equal(t, "cash", tx.PaymentProvider)
	assert.Equal(t, "backoffice:alice", tx.InitiatedBy)
	assert.Nil(t, tx.PaidAt)
	assert.NotEqual(t, "", tx.ID.String())
}

func TestNewTransaction_Validation(t *testing.T) {
	draft := newDraft()
	draft.Amount = decimal.Zero
	_, err := NewTransaction(draft, FlowTypeCredit, "cash", "backoffice:alice")
	assert.True(t, errors.Is(err, errorutils.ErrNonPositiveAmount))
	assert.True(t, errors.Is(err, errorutils.ErrValidation))

	draft = newDraft()
	draft.Amount = decimal.NewFromInt(-5)
	_, err = NewTransaction(draft, FlowTypeCredit, "cash", "backoffice:alice")
	assert.True(t, errors.Is(err, errorutils.ErrNonPositiveAmount))

	draft = newDraft()
	draft.Currency = "usd"
	_, err = NewTransaction(draft, FlowTypeCredit, "cash", "backoffice:alice")
	assert.True(t, errors.Is(err, errorutils.ErrInvalidCurrency))

	draft = newDraft()
	draft.Currency = "DOLLARS"
	_, err = NewTransaction(draft, FlowTypeCredit, "cash", "backoffice:alice")
	assert.True(t, errors.Is(err, errorutils.ErrInvalidCurrency))
}

func TestTransition_SettleSetsPaidAtOnce(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, "cash", "backoffice:alice")
	assert.NoError(t, err)

	assert.NoError(t, tx.Transition(TransactionStatusSettled))
	assert.Equal(t, TransactionStatusSettled, tx.Status)
	assert.NotNil(t, tx.PaidAt)

	paidAt := *tx.PaidAt

	// a second settle is rejected and the timestamp is untouched
	err = tx.Transition(TransactionStatusSettled)
	assert.True(t, errors.Is(err, errorutils.ErrTransactionFinalized))
	assert.True(t, errors.Is(err, errorutils.ErrBusinessRule))
	assert.Equal(t, paidAt, *tx.PaidAt)
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []string{
		TransactionStatusSettled,
		TransactionStatusCancelled,
		TransactionStatusFailed,
	} {
		tx, err := NewTransaction(newDraft(), FlowTypeCredit, "cash", "backoffice:alice")
		assert.NoError(t, err)

		assert.NoError(t, tx.Transition(terminal))
		assert.True(t, tx.IsTerminal())

		for _, next := range []string{
			TransactionStatusInitiated,
			TransactionStatusSettled,
			TransactionStatusCancelled,
			TransactionStatusFailed,
		} {
			err := tx.Transition(next)
			assert.True(t, errors.Is(err, errorutils.ErrTransactionFinalized),
				"transition %s -> %s must be rejected", terminal, next)
		}
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, "cash", "backoffice:alice")
	assert.NoError(t, err)

	assert.Error(t, tx.Transition("refunded"))
}

func TestAddExternalReference_WriteOnce(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, "card_gateway", "backoffice:alice")
	assert.NoError(t, err)

	tx.AddExternalReference("gatewayTransactionId", "gw-1")
	tx.AddExternalReference("gatewayTransactionId", "gw-2")

	assert.Equal(t, "gw-1", tx.ExternalReferences["gatewayTransactionId"])
}
