package clients

import (
	"errors"
	"fmt"

	errorutils "github.com/marketwell/payhub/libs/errors"
)

const (
	// ErrUnableToDecode unable to decode body
	ErrUnableToDecode = "unable to decode response"
	// ErrProtocolError the error was within the data that went into the endpoint
	ErrProtocolError = "protocol error"
	// ErrUnableToEscapeURL the url could nto be escaped
	ErrUnableToEscapeURL = "unable to escape url"
	// ErrInvalidHost the host was invalid
	ErrInvalidHost = "invalid host"
	// ErrMalformedRequest the request was malformed
	ErrMalformedRequest = "malformed request"
	// ErrUnableToEncodeBody body could not be decoded
	ErrUnableToEncodeBody = "unable to encode body"
)

// HTTPState captures the state of the response to be read by lower fns in the stack
type HTTPState struct {
	// Status is the status of the response
	Status int
	// Path is the path of the request
	Path string
	// Body is the body of the response
	Body interface{}
}

// NewHTTPError creates a new response state
func NewHTTPError(err error, path, message string, status int, v interface{}) error {
	return errorutils.New(err, message, HTTPState{
		Status: status,
		Path:   path,
		Body:   v,
	})
}

// UnwrapHTTPState this err is an errorutils.ErrorBundle, with an HTTPState data
func UnwrapHTTPState(err error) (*HTTPState, error) {
	var eb *errorutils.ErrorBundle
	if errors.As(err, &eb) {
		if state, ok := eb.Data().(HTTPState); ok {
			return &state, nil
		}
	}
	return nil, fmt.Errorf("error unwrapping http state for error %w", err)
}
