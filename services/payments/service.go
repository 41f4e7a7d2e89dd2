package payments

import (
	"context"
	"time"

	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/marketwell/payhub/libs/logging"
	srv "github.com/marketwell/payhub/libs/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	transactionStatusCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_transactions_total",
			Help: "Counter of transactions by provider and status",
		},
		[]string{"provider", "status"},
	)

	providerHealthGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_provider_healthy",
			Help: "Gauge holding the last health probe result per provider",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(transactionStatusCounter)
	prometheus.MustRegister(providerHealthGauge)
}

// prober is implemented by providers that maintain their health flag off
// a periodic probe
type prober interface {
	Provider
	ProbeJob(ctx context.Context) (bool, error)
}

// Service contains datastore and the provider registry connections
type Service struct {
	Datastore Datastore
	registry  *Registry
	converter *Converter
	jobs      []srv.Job
}

// InitService creates a service using the passed datastore, registry and
// converter, and seeds the rate table from the datastore.
func InitService(ctx context.Context, datastore Datastore, registry *Registry, converter *Converter) (*Service, error) {
	logger := logging.Logger(ctx, "payments.InitService")

	service := &Service{
		Datastore: datastore,
		registry:  registry,
		converter: converter,
	}

	if err := converter.Seed(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to seed rates from datastore")
	}

	service.jobs = []srv.Job{
		{
			Func:    converter.RefreshJob,
			Cadence: 15 * time.Minute,
			Workers: 1,
		},
	}

	for _, tag := range registry.Tags() {
		provider, err := registry.Provider(tag)
		if err != nil {
			return nil, err
		}
		p, ok := provider.(prober)
		if !ok {
			providerHealthGauge.WithLabelValues(provider.Name()).Set(1)
			continue
		}
		service.jobs = append(service.jobs, srv.Job{
			Func:    service.probeJob(p),
			Cadence: time.Minute,
			Workers: 1,
		})
	}

	return service, nil
}

func (s *Service) probeJob(p prober) srv.JobFunc {
	return func(ctx context.Context) (bool, error) {
		attempted, err := p.ProbeJob(ctx)
		healthy := float64(0)
		if p.IsHealthy() {
			healthy = 1
		}
		providerHealthGauge.WithLabelValues(p.Name()).Set(healthy)
		return attempted, err
	}
}

// Jobs - the jobs the service wants run periodically
func (s *Service) Jobs() []srv.Job {
	return s.jobs
}

// InitiateIncoming creates and persists an incoming transaction on the
// given rail, returning the persisted transaction and the checkout info
// the payer needs.
func (s *Service) InitiateIncoming(
	ctx context.Context,
	draft TransactionDraft,
	provider string,
	settleImmediately bool,
	initiatedBy string,
) (*Transaction, *CheckoutInfo, error) {
	p, err := s.registry.Provider(provider)
	if err != nil {
		return nil, nil, err
	}

	tx, err := NewTransaction(draft, FlowTypeCredit, provider, initiatedBy)
	if err != nil {
		return nil, nil, err
	}

	info, err := p.InitiateIncoming(ctx, tx, settleImmediately)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Datastore.InsertTransaction(ctx, tx); err != nil {
		return nil, nil, err
	}

	transactionStatusCounter.WithLabelValues(provider, tx.Status).Inc()
	return tx, info, nil
}

// InitiateOutgoing creates and persists an outgoing transaction on the
// given rail.
func (s *Service) InitiateOutgoing(
	ctx context.Context,
	draft TransactionDraft,
	provider string,
	settleImmediately bool,
	initiatedBy string,
) (*Transaction, error) {
	p, err := s.registry.Provider(provider)
	if err != nil {
		return nil, err
	}

	tx, err := NewTransaction(draft, FlowTypeDebit, provider, initiatedBy)
	if err != nil {
		return nil, err
	}

	tx, err = p.InitiateOutgoing(ctx, tx, settleImmediately)
	if err != nil {
		return nil, err
	}

	if err := s.Datastore.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	transactionStatusCounter.WithLabelValues(provider, tx.Status).Inc()
	return tx, nil
}

// Settle finalizes an initiated transaction on its rail and records the
// transition. A non-empty provider tag must match the rail the
// transaction was initiated on.
func (s *Service) Settle(ctx context.Context, reference, provider, initiatedBy string) (*Transaction, error) {
	tx, err := s.Datastore.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if provider != "" && provider != tx.PaymentProvider {
		return nil, errorutils.Wrap(errorutils.ErrValidation,
			"transaction was not initiated on provider "+provider)
	}
	if tx.IsTerminal() {
		return nil, errorutils.ErrTransactionFinalized
	}

	p, err := s.registry.Provider(tx.PaymentProvider)
	if err != nil {
		return nil, err
	}

	tx, err = p.Settle(ctx, tx)
	if err != nil {
		return nil, err
	}

	err = s.Datastore.TransitionTransaction(ctx, tx.TransactionID, tx.Status, tx.PaidAt, tx.ExternalReferences)
	if err != nil {
		return nil, err
	}

	transactionStatusCounter.WithLabelValues(tx.PaymentProvider, tx.Status).Inc()
	return tx, nil
}

// Cancel voids an initiated transaction without touching the rail
func (s *Service) Cancel(ctx context.Context, reference, initiatedBy string) (*Transaction, error) {
	tx, err := s.Datastore.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if err := tx.Transition(TransactionStatusCancelled); err != nil {
		return nil, err
	}

	err = s.Datastore.TransitionTransaction(ctx, tx.TransactionID, TransactionStatusCancelled, nil, nil)
	if err != nil {
		return nil, err
	}

	transactionStatusCounter.WithLabelValues(tx.PaymentProvider, tx.Status).Inc()
	return tx, nil
}

// Convert converts an amount between two currencies off the cached table
func (s *Service) Convert(ctx context.Context, base, target string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.converter.Convert(ctx, base, target, amount)
}

// GetTransaction retrieves a transaction by reference
func (s *Service) GetTransaction(ctx context.Context, reference string) (*Transaction, error) {
	return s.Datastore.GetTransactionByReference(ctx, reference)
}

// ListTransactions lists transactions filtered by provider and status
func (s *Service) ListTransactions(ctx context.Context, provider, status string) ([]Transaction, error) {
	return s.Datastore.ListTransactions(ctx, provider, status)
}
