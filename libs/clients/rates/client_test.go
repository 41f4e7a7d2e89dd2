package rates

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T) Client {
	client, err := New(Config{
		Server: "https://rates.test",
		AppID:  "app-1",
	})
	assert.NoError(t, err)
	return client
}

func TestFetchRates(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var gotAppID string
	httpmock.RegisterResponder(http.MethodGet, "https://rates.test/api/latest.json",
		func(req *http.Request) (*http.Response, error) {
			gotAppID = req.Header.Get("X-App-Id")
			return httpmock.NewStringResponse(http.StatusOK,
				`{"base":"USD","rates":{"USD":"1","EUR":"0.92","UAH":"41.25"}}`), nil
		})

	client := newTestClient(t)

	resp, err := client.FetchRates(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "app-1", gotAppID)
	assert.Equal(t, "USD", resp.Base)
	assert.Len(t, resp.Rates, 3)
	assert.Equal(t, "0.92", resp.Rates["EUR"].String())
}

func TestFetchRates_CachesResponse(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://rates.test/api/latest.json",
		httpmock.NewStringResponder(http.StatusOK,
			`{"base":"USD","rates":{"USD":"1"}}`))

	client := newTestClient(t)

	_, err := client.FetchRates(context.Background())
	assert.NoError(t, err)
	_, err = client.FetchRates(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchRates_TransportError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://rates.test/api/latest.json",
		httpmock.NewStringResponder(http.StatusBadGateway, `upstream unavailable`))

	client := newTestClient(t)

	_, err := client.FetchRates(context.Background())
	assert.Error(t, err)
}
