package payments

import (
	"context"
	"encoding/json"
	"testing"

	errorutils "github.com/marketwell/payhub/libs/errors"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func confirmationMessage(t *testing.T, confirmation ConfirmationMessage) kafkago.Message {
	value, err := json.Marshal(confirmation)
	assert.NoError(t, err)
	return kafkago.Message{Key: []byte(confirmation.TransactionID), Value: value}
}

func confirmationDatastore(t *testing.T, tx *Transaction) (*mockDatastore, *[]string) {
	applied := []string{}
	ds := &mockDatastore{
		getByID: func(ctx context.Context, transactionID string) (*Transaction, error) {
			if tx == nil || tx.TransactionID != transactionID {
				return nil, errorutils.ErrTransactionNotFound
			}
			return tx, nil
		},
		transition: func(ctx context.Context, transactionID, toStatus string) error {
			if tx.IsTerminal() {
				return errorutils.ErrTransactionFinalized
			}
			applied = append(applied, toStatus)
			return tx.Transition(toStatus)
		},
	}
	return ds, &applied
}

func TestConfirmationHandler_Settles(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, ProviderWallet, "backoffice:alice")
	assert.NoError(t, err)
	tx.TransactionID = "tx-1"

	ds, applied := confirmationDatastore(t, tx)
	handler := NewConfirmationHandler(ds)

	msg := confirmationMessage(t, ConfirmationMessage{
		TransactionID: "tx-1",
		TargetStatus:  TransactionStatusSettled,
		Provider:      ProviderWallet,
	})

	assert.NoError(t, handler.Handle(context.Background(), msg))
	assert.Equal(t, []string{TransactionStatusSettled}, *applied)
	assert.Equal(t, TransactionStatusSettled, tx.Status)
}

func TestConfirmationHandler_ReplayIsIdempotent(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, ProviderWallet, "backoffice:alice")
	assert.NoError(t, err)
	tx.TransactionID = "tx-1"

	ds, applied := confirmationDatastore(t, tx)
	handler := NewConfirmationHandler(ds)

	msg := confirmationMessage(t, ConfirmationMessage{
		TransactionID: "tx-1",
		TargetStatus:  TransactionStatusSettled,
		Provider:      ProviderWallet,
	})

	assert.NoError(t, handler.Handle(context.Background(), msg))
	// the same message again is skipped, not failed
	assert.NoError(t, handler.Handle(context.Background(), msg))
	assert.Equal(t, []string{TransactionStatusSettled}, *applied)
}

func TestConfirmationHandler_Poison(t *testing.T) {
	tx, err := NewTransaction(newDraft(), FlowTypeCredit, ProviderWallet, "backoffice:alice")
	assert.NoError(t, err)
	tx.TransactionID = "tx-1"

	ds, _ := confirmationDatastore(t, tx)
	handler := NewConfirmationHandler(ds)

	// malformed json
	assert.Error(t, handler.Handle(context.Background(), kafkago.Message{Value: []byte("{")}))

	// missing transaction id
	assert.Error(t, handler.Handle(context.Background(), confirmationMessage(t, ConfirmationMessage{
		TargetStatus: TransactionStatusSettled,
		Provider:     ProviderWallet,
	})))

	// invalid target status
	assert.Error(t, handler.Handle(context.Background(), confirmationMessage(t, ConfirmationMessage{
		TransactionID: "tx-1",
		TargetStatus:  "refunded",
		Provider:      ProviderWallet,
	})))

	// initiated is not a confirmation target
	assert.Error(t, handler.Handle(context.Background(), confirmationMessage(t, ConfirmationMessage{
		TransactionID: "tx-1",
		TargetStatus:  TransactionStatusInitiated,
		Provider:      ProviderWallet,
	})))

	// unknown transaction
	assert.Error(t, handler.Handle(context.Background(), confirmationMessage(t, ConfirmationMessage{
		TransactionID: "tx-9",
		TargetStatus:  TransactionStatusSettled,
		Provider:      ProviderWallet,
	})))

	// provider mismatch
	assert.Error(t, handler.Handle(context.Background(), confirmationMessage(t, ConfirmationMessage{
		TransactionID: "tx-1",
		TargetStatus:  TransactionStatusSettled,
		Provider:      ProviderCash,
	})))

	assert.Equal(t, TransactionStatusInitiated, tx.Status)
}

type stubDLQWriter struct {
	messages []kafkago.Message
}

func (s *stubDLQWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	s.messages = append(s.messages, msgs...)
	return nil
}

func TestConfirmationErrorHandler_WritesToDLQ(t *testing.T) {
	writer := &stubDLQWriter{}
	handler := NewConfirmationErrorHandler(writer)

	message := kafkago.Message{Key: []byte("tx-1"), Value: []byte("{")}
	assert.NoError(t, handler.Handle(context.Background(), message, assert.AnError))

	assert.Len(t, writer.messages, 1)
	assert.Equal(t, message.Value, writer.messages[0].Value)
	assert.Equal(t, "error", writer.messages[0].Headers[0].Key)
}
