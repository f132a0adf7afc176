package model

import (
	"errors"
	"fmt"
)

// Lineage and allocation failures. All of them describe bad or unsatisfiable
// input and are not worth retrying without changing the request.
var (
	ErrMissingInput       = errors.New("missing input")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrCountMismatch      = errors.New("count mismatch")
	ErrNoPredecessors     = errors.New("no predecessors")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrUnitNotFound       = errors.New("unit not found")
	ErrMissingBiddingZone = errors.New("missing bidding zone")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrNoMatchedPairs     = errors.New("no matched pairs")
)

// ErrStepNotFound marks a lookup of an unknown process step id. It is a
// missing input, so ClientErrorKind reports ErrMissingInput for it.
var ErrStepNotFound = fmt.Errorf("process step not found: %w", ErrMissingInput)

var clientErrors = []error{
	ErrMissingInput,
	ErrTypeMismatch,
	ErrCountMismatch,
	ErrNoPredecessors,
	ErrInsufficientStock,
	ErrUnitNotFound,
	ErrMissingBiddingZone,
	ErrInvalidTimestamp,
	ErrNoMatchedPairs,
}

// IsClientError reports whether err (or any error in its chain) is one of the
// lineage/allocation failures above.
func IsClientError(err error) bool {
	return ClientErrorKind(err) != nil
}

// ClientErrorKind returns the sentinel err belongs to, or nil.
func ClientErrorKind(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}
