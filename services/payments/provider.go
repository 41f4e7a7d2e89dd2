package payments

import (
	"context"

	errorutils "github.com/marketwell/payhub/libs/errors"
)

// Provider tags for the supported payment rails.
const (
	ProviderCash        = "cash"
	ProviderCardGateway = "card_gateway"
	ProviderWallet      = "wallet"
)

// CheckoutInfo is what an incoming initiation hands back to the caller so
// the payer can complete the payment.
type CheckoutInfo struct {
	TransactionID string `json:"transactionId"`
	Reference     string `json:"reference"`
	CheckoutURL   string `json:"checkoutUrl,omitempty"`
	AuthCode      string `json:"authCode,omitempty"`
	Settled       bool   `json:"settled"`
}

// Provider is the contract every payment rail implements.
type Provider interface {
	// Name returns the provider tag
	Name() string
	// InitiateIncoming starts collecting funds from a payer
	InitiateIncoming(ctx context.Context, tx *Transaction, settleImmediately bool) (*CheckoutInfo, error)
	// InitiateOutgoing starts paying funds out to a beneficiary
	InitiateOutgoing(ctx context.Context, tx *Transaction, settleImmediately bool) (*Transaction, error)
	// Settle finalizes a previously initiated transaction on the rail
	Settle(ctx context.Context, tx *Transaction) (*Transaction, error)
	// IsHealthy reports the result of the last health probe
	IsHealthy() bool
}

// Registry routes provider tags to their adapters. Lookup of an
// unregistered tag is an error, there is no fallback rail.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given adapters, keyed by Name
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Provider returns the adapter registered for the tag
func (r *Registry) Provider(tag string) (Provider, error) {
	p, ok := r.providers[tag]
	if !ok {
		return nil, errorutils.ErrProviderNotFound
	}
	return p, nil
}

// Tags returns the registered provider tags
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.providers))
	for tag := range r.providers {
		tags = append(tags, tag)
	}
	return tags
}
