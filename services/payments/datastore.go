package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marketwell/payhub/libs/datastore"
	errorutils "github.com/marketwell/payhub/libs/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// Datastore abstracts over the underlying datastore
type Datastore interface {
	datastore.Datastore
	// InsertTransaction inserts a new initiated transaction
	InsertTransaction(ctx context.Context, tx *Transaction) error
	// GetTransactionByTransactionID retrieves a transaction by its natural key
	GetTransactionByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	// GetTransactionByReference retrieves a transaction by its reference
	GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	// ListTransactions lists transactions filtered by provider and status
	ListTransactions(ctx context.Context, provider, status string) ([]Transaction, error)
	// TransitionTransaction moves an initiated transaction to a terminal status
	TransitionTransaction(ctx context.Context, transactionID, toStatus string, paidAt *time.Time, refs datastore.Metadata) error
	// ReplaceCurrencyRates atomically replaces the persisted rates table
	ReplaceCurrencyRates(ctx context.Context, base string, rates map[string]decimal.Decimal) error
	// GetCurrencyRates retrieves the persisted rates table
	GetCurrencyRates(ctx context.Context) (map[string]decimal.Decimal, error)
	// GetBeneficiary retrieves a beneficiary by id
	GetBeneficiary(ctx context.Context, id uuid.UUID) (*Beneficiary, error)
}

// Postgres is a Datastore wrapper around a postgres database
type Postgres struct {
	datastore.Postgres
}

// NewPostgres creates a new Postgres Datastore
func NewPostgres(databaseURL string, performMigration bool) (Datastore, error) {
	pg, err := datastore.NewPostgres(databaseURL, performMigration)
	if err != nil {
		return nil, err
	}
	return &Postgres{*pg}, nil
}

// InsertTransaction inserts a new initiated transaction
func (pg *Postgres) InsertTransaction(ctx context.Context, tx *Transaction) error {
	statement := `
	insert into transactions (
		id, transaction_id, reference, amount, currency, flow_type, purpose,
		status, payment_provider, beneficiary_id, initiated_by,
		external_references, created_at, paid_at
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := pg.RawDB().ExecContext(ctx, statement,
		tx.ID, tx.TransactionID, tx.Reference, tx.Amount, tx.Currency,
		tx.FlowType, tx.Purpose, tx.Status, tx.PaymentProvider,
		tx.BeneficiaryID, tx.InitiatedBy, tx.ExternalReferences,
		tx.CreatedAt, tx.PaidAt)
	return err
}

// GetTransactionByTransactionID retrieves a transaction by its natural key
func (pg *Postgres) GetTransactionByTransactionID(ctx context.Context, transactionID string) (*Transaction, error) {
	statement := `
	select
		id, transaction_id, reference, amount, currency, flow_type, purpose,
		status, payment_provider, beneficiary_id, initiated_by,
		external_references, created_at, paid_at
	from transactions where transaction_id = $1`

	var tx Transaction
	err := pg.RawDB().GetContext(ctx, &tx, statement, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errorutils.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// GetTransactionByReference retrieves a transaction by its reference
func (pg *Postgres) GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	statement := `
	select
		id, transaction_id, reference, amount, currency, flow_type, purpose,
		status, payment_provider, beneficiary_id, initiated_by,
		external_references, created_at, paid_at
	from transactions where reference = $1`

	var tx Transaction
	err := pg.RawDB().GetContext(ctx, &tx, statement, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errorutils.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// ListTransactions lists transactions filtered by provider and status,
// empty filters match everything
func (pg *Postgres) ListTransactions(ctx context.Context, provider, status string) ([]Transaction, error) {
	statement := `
	select
		id, transaction_id, reference, amount, currency, flow_type, purpose,
		status, payment_provider, beneficiary_id, initiated_by,
		external_references, created_at, paid_at
	from transactions
	where ($1 = '' or payment_provider = $1)
		and ($2 = '' or status = $2)
	order by created_at desc`

	txs := []Transaction{}
	err := pg.RawDB().SelectContext(ctx, &txs, statement, provider, status)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// TransitionTransaction moves an initiated transaction to a terminal status.
// The update is guarded on the initiated status so that concurrent
// finalizers race safely, the loser observes ErrTransactionFinalized.
func (pg *Postgres) TransitionTransaction(
	ctx context.Context,
	transactionID string,
	toStatus string,
	paidAt *time.Time,
	refs datastore.Metadata,
) error {
	statement := `
	update transactions
	set status = $2,
		paid_at = coalesce(paid_at, $3),
		external_references = external_references || $4
	where transaction_id = $1 and status = 'initiated'`

	if refs == nil {
		refs = datastore.Metadata{}
	}

	result, err := pg.RawDB().ExecContext(ctx, statement, transactionID, toStatus, paidAt, refs)
	if err != nil {
		return err
	}

	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		// either the transaction does not exist or it is already terminal
		_, err := pg.GetTransactionByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		return errorutils.ErrTransactionFinalized
	}
	return nil
}

// ReplaceCurrencyRates atomically replaces the persisted rates table
func (pg *Postgres) ReplaceCurrencyRates(ctx context.Context, base string, rates map[string]decimal.Decimal) error {
	tx, err := pg.BeginTx()
	if err != nil {
		return err
	}
	defer pg.RollbackTx(tx)

	_, err = tx.ExecContext(ctx, `delete from currency_rates`)
	if err != nil {
		return err
	}

	statement := `insert into currency_rates (currency, base, rate, updated_at) values ($1, $2, $3, $4)`
	now := time.Now().UTC()
	for currency, rate := range rates {
		_, err = tx.ExecContext(ctx, statement, currency, base, rate, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetCurrencyRates retrieves the persisted rates table
func (pg *Postgres) GetCurrencyRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	statement := `select currency, rate from currency_rates`

	rows := []struct {
		Currency string          `db:"currency"`
		Rate     decimal.Decimal `db:"rate"`
	}{}
	err := pg.RawDB().SelectContext(ctx, &rows, statement)
	if err != nil {
		return nil, err
	}

	rates := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		rates[row.Currency] = row.Rate
	}
	return rates, nil
}

// GetBeneficiary retrieves a beneficiary by id
func (pg *Postgres) GetBeneficiary(ctx context.Context, id uuid.UUID) (*Beneficiary, error) {
	statement := `
	select id, name, wallet_account, created_at
	from beneficiaries where id = $1`

	var beneficiary Beneficiary
	err := pg.RawDB().GetContext(ctx, &beneficiary, statement, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errorutils.ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return &beneficiary, nil
}
