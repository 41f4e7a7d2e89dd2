package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketwell/payhub/libs/backoff/retrypolicy"
	testutils "github.com/marketwell/payhub/libs/test"
	"github.com/stretchr/testify/assert"
)

type stubPolicy struct {
	delays []time.Duration
	calls  int
}

func (s *stubPolicy) CalculateNextDelay() time.Duration {
	if s.calls >= len(s.delays) {
		return retrypolicy.Done
	}
	d := s.delays[s.calls]
	s.calls++
	return d
}

func TestRetry_CtxDone(t *testing.T) {
	ctx, done := context.WithCancel(context.Background())

	operation := func() (interface{}, error) {
		assert.Fail(t, "should not have been executed")
		return nil, nil
	}

	isRetriable := func(error) bool {
		assert.Fail(t, "should not have been executed")
		return false
	}

	done()
	response, err := Retry(ctx, operation, &stubPolicy{}, isRetriable)

	assert.Nil(t, response)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_IsRetriable_False(t *testing.T) {
	expected := errors.New(testutils.RandomString())

	operation := func() (interface{}, error) {
		return nil, expected
	}

	isRetriable := func(error) bool {
		return false
	}

	response, err := Retry(context.Background(), operation, &stubPolicy{}, isRetriable)

	assert.Nil(t, response)
	assert.ErrorIs(t, err, expected)
}

func TestRetry_CalculateNextDelay_Done(t *testing.T) {
	expected := errors.New(testutils.RandomString())

	operation := func() (interface{}, error) {
		return nil, expected
	}

	isRetriable := func(error) bool {
		return true
	}

	response, err := Retry(context.Background(), operation, &stubPolicy{}, isRetriable)

	assert.Nil(t, response)
	assert.ErrorIs(t, err, expected)
}

func TestRetry(t *testing.T) {
	count := 0
	attempts := 2

	operation := func() (interface{}, error) {
		if count < attempts {
			count++
			return nil, errors.New(testutils.RandomString())
		}
		// return on third attempt
		return "success", nil
	}

	policy := &stubPolicy{delays: []time.Duration{0, 0}}

	isRetriable := func(error) bool {
		return true
	}

	response, err := Retry(context.Background(), operation, policy, isRetriable)

	assert.Nil(t, err)
	assert.NotNil(t, response)
	assert.Equal(t, attempts, policy.calls)
}
