// Package oerrors defines the error kinds the core must distinguish, per the
// error handling design in spec.md §7.
package oerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned for missing or invalid required settings.
	ErrConfig = errors.New("oracle: configuration error")
	// ErrNoData is returned when a cycle collected zero observations for
	// every symbol.
	ErrNoData = errors.New("oracle: no observations collected")
	// ErrMixedSymbols signals an aggregator input invariant violation.
	ErrMixedSymbols = errors.New("oracle: mixed symbols in aggregation input")
	// ErrEmptyBatch is reserved for callers that want to treat an empty
	// batch submission as an error instead of a no-op (see Submitter).
	ErrEmptyBatch = errors.New("oracle: batch has no prices")
	// ErrCredentials is returned when a signer key is missing or malformed.
	ErrCredentials = errors.New("oracle: missing or malformed signing credentials")
	// ErrBulkheadRejected is returned when a source's concurrency bulkhead
	// is saturated.
	ErrBulkheadRejected = errors.New("oracle: bulkhead rejected request")
	// ErrCancelled is returned when a cycle or call is cancelled.
	ErrCancelled = errors.New("oracle: cancelled")
)

// HTTPErrorKind categorizes an HTTP failure for retry/circuit decisions.
type HTTPErrorKind string

const (
	HTTPTransient HTTPErrorKind = "transient"
	HTTPPermanent HTTPErrorKind = "permanent"
)

// HTTPError categorises a source-level HTTP failure.
type HTTPError struct {
	Source string
	Kind   HTTPErrorKind
	Err    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oracle: http error from %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError builds an HTTPError of the given kind.
func NewHTTPError(source string, kind HTTPErrorKind, err error) *HTTPError {
	return &HTTPError{Source: source, Kind: kind, Err: err}
}

// RPCError represents a JSON-RPC error body returned by the chain node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("oracle: rpc error %d: %s", e.Code, e.Message)
}

// TxFaultError means the node accepted the transaction but execution
// faulted.
type TxFaultError struct {
	Reason string
}

func (e *TxFaultError) Error() string {
	return fmt.Sprintf("oracle: transaction fault: %s", e.Reason)
}
