package walletpay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/marketwell/payhub/libs/cryptography"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T) Client {
	client, err := New(Config{
		Server:     "https://wallet.test",
		PublicKey:  "pub-1",
		PrivateKey: "priv-1",
	})
	assert.NoError(t, err)
	return client
}

func TestEncodePayload_SignatureVerifiable(t *testing.T) {
	client := newTestClient(t).(*HTTPClient)

	data, signature, err := client.EncodePayload(Payload{
		Action:  ActionStatus,
		OrderID: "order-1",
	})
	assert.NoError(t, err)

	signer := cryptography.NewSaltedDigestSigner([]byte("priv-1"))
	assert.True(t, signer.VerifySignature([]byte(data), signature))

	decoded, err := base64.StdEncoding.DecodeString(data)
	assert.NoError(t, err)

	var payload Payload
	assert.NoError(t, json.Unmarshal(decoded, &payload))
	assert.Equal(t, APIVersion, payload.Version)
	assert.Equal(t, "pub-1", payload.PublicKey)
	assert.Equal(t, ActionStatus, payload.Action)
	assert.Equal(t, "order-1", payload.OrderID)
}

func TestPay_SubmitsSignedForm(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var gotPayload Payload
	httpmock.RegisterResponder(http.MethodPost, "https://wallet.test/api/request",
		func(req *http.Request) (*http.Response, error) {
			assert.NoError(t, req.ParseForm())

			decoded, err := base64.StdEncoding.DecodeString(req.PostFormValue("data"))
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(decoded, &gotPayload))
			assert.NotEmpty(t, req.PostFormValue("signature"))

			return httpmock.NewJsonResponse(http.StatusOK, Response{
				Result:    "ok",
				Status:    StatusSuccess,
				PaymentID: 42,
				OrderID:   gotPayload.OrderID,
			})
		})

	client := newTestClient(t)

	resp, err := client.Pay(context.Background(), Payload{
		Amount:   "5000",
		Currency: "UAH",
		OrderID:  "order-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, ActionPay, gotPayload.Action)
	assert.Equal(t, int64(42), resp.PaymentID)
	assert.Equal(t, StatusSuccess, resp.Status)
}

func TestPayout_SetsAction(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var gotPayload Payload
	httpmock.RegisterResponder(http.MethodPost, "https://wallet.test/api/request",
		func(req *http.Request) (*http.Response, error) {
			assert.NoError(t, req.ParseForm())
			decoded, err := base64.StdEncoding.DecodeString(req.PostFormValue("data"))
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(decoded, &gotPayload))
			return httpmock.NewJsonResponse(http.StatusOK, Response{Result: "ok"})
		})

	client := newTestClient(t)

	_, err := client.Payout(context.Background(), Payload{
		Amount:          "5000",
		Currency:        "UAH",
		OrderID:         "order-2",
		ReceiverAccount: "acct-9",
	})
	assert.NoError(t, err)
	assert.Equal(t, ActionPayout, gotPayload.Action)
	assert.Equal(t, "acct-9", gotPayload.ReceiverAccount)
}

func TestSandboxClient_StatusShortCircuits(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := NewSandboxClient(newTestClient(t))

	resp, err := client.Status(context.Background(), "order-3")
	assert.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "order-3", resp.OrderID)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
