package payments

import (
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/marketwell/payhub/libs/datastore"
	errorutils "github.com/marketwell/payhub/libs/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses. A transaction starts out initiated and moves to
// exactly one terminal status.
const (
	TransactionStatusInitiated = "initiated"
	TransactionStatusSettled   = "settled"
	TransactionStatusCancelled = "cancelled"
	TransactionStatusFailed    = "failed"
)

// Flow types distinguish money coming into the merchant account from
// money paid out of it.
const (
	FlowTypeCredit = "credit"
	FlowTypeDebit  = "debit"
)

var transactionStatusTransitions = map[string][]string{
	TransactionStatusInitiated: {
		TransactionStatusSettled,
		TransactionStatusCancelled,
		TransactionStatusFailed,
	},
	TransactionStatusSettled:   {},
	TransactionStatusCancelled: {},
	TransactionStatusFailed:    {},
}

// Transaction is a single money movement tracked through its lifecycle.
type Transaction struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	TransactionID      string             `json:"transactionId" db:"transaction_id"`
	Reference          string             `json:"reference" db:"reference"`
	Amount             decimal.Decimal    `json:"amount" db:"amount"`
	Currency           string             `json:"currency" db:"currency"`
	FlowType           string             `json:"flowType" db:"flow_type"`
	Purpose            string             `json:"purpose" db:"purpose"`
	Status             string             `json:"status" db:"status"`
	PaymentProvider    string             `json:"paymentProvider" db:"payment_provider"`
	BeneficiaryID      *uuid.UUID         `json:"beneficiaryId" db:"beneficiary_id"`
	InitiatedBy        string             `json:"initiatedBy" db:"initiated_by"`
	ExternalReferences datastore.Metadata `json:"externalReferences" db:"external_references"`
	CreatedAt          time.Time          `json:"createdAt" db:"created_at"`
	PaidAt             *time.Time         `json:"paidAt" db:"paid_at"`

	// caller supplied context handed through to the rail, not persisted
	Description string `json:"-" db:"-"`
	ReturnURL   string `json:"-" db:"-"`
}

// TransactionDraft carries the caller supplied fields of a new transaction.
type TransactionDraft struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Purpose       string          `json:"purpose"`
	Description   string          `json:"description"`
	ReturnURL     string          `json:"returnUrl"`
	BeneficiaryID *uuid.UUID      `json:"beneficiaryId"`
}

// Validate checks the caller supplied fields before any provider work
func (d *TransactionDraft) Validate() error {
	if !d.Amount.IsPositive() {
		return errorutils.ErrNonPositiveAmount
	}
	if !govalidator.IsISO4217(d.Currency) {
		return errorutils.ErrInvalidCurrency
	}
	return nil
}

// NewTransaction builds an initiated transaction from a draft
func NewTransaction(draft TransactionDraft, flowType, provider, initiatedBy string) (*Transaction, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return &Transaction{
		ID:                 uuid.NewV4(),
		Amount:             draft.Amount,
		Currency:           draft.Currency,
		FlowType:           flowType,
		Purpose:            draft.Purpose,
		Status:             TransactionStatusInitiated,
		PaymentProvider:    provider,
		BeneficiaryID:      draft.BeneficiaryID,
		InitiatedBy:        initiatedBy,
		ExternalReferences: datastore.Metadata{},
		CreatedAt:          time.Now().UTC(),
		Description:        draft.Description,
		ReturnURL:          draft.ReturnURL,
	}, nil
}

// description returns the caller supplied description, falling back to
// the business purpose.
func (t *Transaction) description() string {
	if t.Description != "" {
		return t.Description
	}
	return t.Purpose
}

// IsTerminal reports whether the transaction has reached a final status
func (t *Transaction) IsTerminal() bool {
	return len(transactionStatusTransitions[t.Status]) == 0
}

// canTransition reports whether moving to the given status is allowed
func (t *Transaction) canTransition(to string) bool {
	for _, allowed := range transactionStatusTransitions[t.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the transaction to the given status. Terminal
// transactions reject every transition.
func (t *Transaction) Transition(to string) error {
	if _, ok := transactionStatusTransitions[to]; !ok {
		return errorutils.New(nil, "unknown transaction status", to)
	}
	if !t.canTransition(to) {
		return errorutils.ErrTransactionFinalized
	}
	t.Status = to
	if to == TransactionStatusSettled && t.PaidAt == nil {
		now := time.Now().UTC()
		t.PaidAt = &now
	}
	return nil
}

// AddExternalReference records a provider supplied reference, existing
// keys are write once and never overwritten.
func (t *Transaction) AddExternalReference(key string, value interface{}) {
	if t.ExternalReferences == nil {
		t.ExternalReferences = datastore.Metadata{}
	}
	if _, ok := t.ExternalReferences[key]; ok {
		return
	}
	t.ExternalReferences[key] = value
}
