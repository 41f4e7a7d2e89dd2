package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/marketwell/payhub/libs/logging"
	kafkago "github.com/segmentio/kafka-go"
)

// ConfirmationMessage is the payload providers publish when a payment
// reaches a terminal state on their side.
type ConfirmationMessage struct {
	TransactionID string `json:"transactionId"`
	TargetStatus  string `json:"targetStatus"`
	Provider      string `json:"provider"`
}

// ConfirmationHandler applies provider confirmations to the ledger. The
// state machine makes replays harmless, an already finalized transaction
// is treated as processed.
type ConfirmationHandler struct {
	datastore Datastore
}

// NewConfirmationHandler returns a handler over the given datastore
func NewConfirmationHandler(datastore Datastore) *ConfirmationHandler {
	return &ConfirmationHandler{datastore: datastore}
}

// Handle processes a single confirmation message
func (h *ConfirmationHandler) Handle(ctx context.Context, message kafkago.Message) error {
	logger := logging.Logger(ctx, "payments.ConfirmationHandler")

	var confirmation ConfirmationMessage
	if err := json.Unmarshal(message.Value, &confirmation); err != nil {
		return fmt.Errorf("failed to unmarshal confirmation message: %w", err)
	}

	if confirmation.TransactionID == "" {
		return errors.New("confirmation message missing transaction id")
	}
	if _, ok := transactionStatusTransitions[confirmation.TargetStatus]; !ok ||
		confirmation.TargetStatus == TransactionStatusInitiated {
		return fmt.Errorf("confirmation message carries invalid target status %q", confirmation.TargetStatus)
	}

	tx, err := h.datastore.GetTransactionByTransactionID(ctx, confirmation.TransactionID)
	if err != nil {
		return err
	}
	if tx.PaymentProvider != confirmation.Provider {
		return fmt.Errorf("confirmation provider %q does not match transaction provider %q",
			confirmation.Provider, tx.PaymentProvider)
	}

	var paidAt *time.Time
	if confirmation.TargetStatus == TransactionStatusSettled {
		now := time.Now().UTC()
		paidAt = &now
	}

	err = h.datastore.TransitionTransaction(ctx, confirmation.TransactionID, confirmation.TargetStatus, paidAt, nil)
	if err != nil {
		if errors.Is(err, errorutils.ErrTransactionFinalized) {
			// replayed confirmation, nothing left to do
			logger.Info().
				Str("transaction_id", confirmation.TransactionID).
				Str("target_status", confirmation.TargetStatus).
				Msg("skipping confirmation for finalized transaction")
			return nil
		}
		return err
	}

	logger.Info().
		Str("transaction_id", confirmation.TransactionID).
		Str("target_status", confirmation.TargetStatus).
		Msg("applied confirmation")
	return nil
}

// DLQWriter is the subset of the kafka writer the error handler needs
type DLQWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// ConfirmationErrorHandler forwards poison messages to the dead letter
// topic so the consumer loop never stalls.
type ConfirmationErrorHandler struct {
	writer DLQWriter
}

// NewConfirmationErrorHandler returns an error handler over the given writer
func NewConfirmationErrorHandler(writer DLQWriter) *ConfirmationErrorHandler {
	return &ConfirmationErrorHandler{writer: writer}
}

// Handle writes the failed message and its error to the dead letter topic
func (h *ConfirmationErrorHandler) Handle(ctx context.Context, message kafkago.Message, errorMessage error) error {
	return h.writer.WriteMessages(ctx, kafkago.Message{
		Key:   message.Key,
		Value: message.Value,
		Headers: append(message.Headers, kafkago.Header{
			Key:   "error",
			Value: []byte(errorMessage.Error()),
		}),
	})
}
