package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrRunNotFound    = errors.New("ingestion run not found")
	ErrTemporary      = errors.New("temporary failure")

	// ErrRetrieval marks a total retrieval failure: both channels failed or
	// the scope itself was invalid. A merely degraded result is not an error.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrAborted marks caller-side cancellation; no partial result accompanies it.
	ErrAborted = errors.New("request aborted")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
