package errors_test

import (
	"errors"
	"testing"

	testutils "github.com/marketwell/payhub/libs/test"
	"github.com/stretchr/testify/assert"

	errutil "github.com/marketwell/payhub/libs/errors"
)

func TestErrorBundle_Unwrap(t *testing.T) {
	cause := errors.New(testutils.RandomString())
	err := errutil.Wrap(cause, testutils.RandomString())
	assert.True(t, errors.Is(err, cause))
}

func TestErrorBundle_DataToString_DataNil(t *testing.T) {
	err := errutil.Wrap(errors.New(testutils.RandomString()), testutils.RandomString())
	var actual *errutil.ErrorBundle
	errors.As(err, &actual)
	assert.Equal(t, "no error bundle data", actual.DataToString())
}

func TestSentinelTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(errutil.ErrCurrencyNotFound, errutil.ErrNotFound))
	assert.True(t, errors.Is(errutil.ErrProviderNotFound, errutil.ErrNotFound))
	assert.True(t, errors.Is(errutil.ErrTransactionNotFound, errutil.ErrNotFound))
	assert.True(t, errors.Is(errutil.ErrBeneficiaryNotFound, errutil.ErrNotFound))
	assert.True(t, errors.Is(errutil.ErrTransactionFinalized, errutil.ErrBusinessRule))
	assert.True(t, errors.Is(errutil.ErrImmediateSettlementUnsupported, errutil.ErrBusinessRule))
	assert.True(t, errors.Is(errutil.ErrImmediateSettlementRequired, errutil.ErrBusinessRule))
	assert.True(t, errors.Is(errutil.ErrNonPositiveAmount, errutil.ErrValidation))
	assert.False(t, errors.Is(errutil.ErrHealthCheckFailed, errutil.ErrBusinessRule))
}
