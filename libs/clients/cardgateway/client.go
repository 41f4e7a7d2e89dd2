// Package cardgateway provides a client to the acquiring gateway used for
// card rail transactions.
package cardgateway

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"

	"github.com/marketwell/payhub/libs/clients"
	"github.com/shengdoushi/base58"
	"github.com/shopspring/decimal"
)

// Client abstracts over the underlying client
type Client interface {
	Initiate(ctx context.Context, payload TransactionPayload) (*TransactionResponse, error)
	Authorize(ctx context.Context, payload TransactionPayload) (*TransactionResponse, error)
	Settle(ctx context.Context, gatewayTransactionID string, payload SettlePayload) (*TransactionResponse, error)
	CheckHealth(ctx context.Context) error
}

// Config holds the connection parameters of the gateway
type Config struct {
	Server     string
	MerchantID string
	Password   string
}

// HTTPClient wraps http.Client for interacting with the gateway
type HTTPClient struct {
	client *clients.SimpleHTTPClient
	conf   Config
}

// New returns a new HTTPClient, retrieving the base URL from the config
func New(conf Config) (Client, error) {
	client, err := clients.New(conf.Server, "")
	if err != nil {
		return nil, err
	}
	return &HTTPClient{client: client, conf: conf}, nil
}

// TransactionPayload is the payload for initiating or authorizing a transaction
type TransactionPayload struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"returnUrl,omitempty"`
}

// NewTransactionPayload builds a payload from a decimal amount
func NewTransactionPayload(amount decimal.Decimal, currency, reference string) TransactionPayload {
	return TransactionPayload{
		Amount:    amount.String(),
		Currency:  currency,
		Reference: reference,
	}
}

// SettlePayload is the payload for settling an authorized transaction
type SettlePayload struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

// TransactionResponse is the gateway view of a transaction
type TransactionResponse struct {
	TransactionID     string `json:"transactionId"`
	Reference         string `json:"reference"`
	Status            string `json:"status"`
	CheckoutURL       string `json:"checkoutUrl,omitempty"`
	AuthorizationCode string `json:"authorizationCode,omitempty"`
	MerchantID        string `json:"merchantId,omitempty"`
	MaskedCard        string `json:"maskedCard,omitempty"`
}

// IdempotencyKey deterministically derives the dedup key for an operation on
// a reference, resubmitting the same pair yields the same key.
func IdempotencyKey(operation, reference string) string {
	key := sha256.Sum256([]byte(operation + "_" + reference))
	return base58.Encode(key[:], base58.IPFSAlphabet)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	credentials := base64.StdEncoding.EncodeToString(
		[]byte(c.conf.MerchantID + ":" + c.conf.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
}

func (c *HTTPClient) post(
	ctx context.Context,
	path string,
	operation string,
	reference string,
	body interface{},
	v interface{},
) error {
	req, err := c.client.NewRequest(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Idempotency-Key", IdempotencyKey(operation, reference))

	_, err = c.client.Do(ctx, req, v)
	return err
}

// Initiate a transaction, obtaining a checkout url for the payer
func (c *HTTPClient) Initiate(ctx context.Context, payload TransactionPayload) (*TransactionResponse, error) {
	var resp TransactionResponse
	err := c.post(ctx, "/transactions", "initiate", payload.Reference, payload, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Authorize a transaction, placing a hold on the payer funds
func (c *HTTPClient) Authorize(ctx context.Context, payload TransactionPayload) (*TransactionResponse, error) {
	var resp TransactionResponse
	err := c.post(ctx, "/transactions/authorize", "authorize", payload.Reference, payload, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Settle a previously authorized transaction
func (c *HTTPClient) Settle(ctx context.Context, gatewayTransactionID string, payload SettlePayload) (*TransactionResponse, error) {
	var resp TransactionResponse
	err := c.post(ctx, "/transactions/"+gatewayTransactionID+"/settle", "settle", payload.Reference, payload, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckHealth hits the gateway liveness endpoint
func (c *HTTPClient) CheckHealth(ctx context.Context) error {
	req, err := c.client.NewRequest(ctx, http.MethodGet, "/check", nil, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	_, err = c.client.Do(ctx, req, nil)
	return err
}
