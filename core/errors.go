package core

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable indicates every ledger source for a user failed.
// Individual account failures are absorbed by the reader; this error only
// surfaces when there is nothing left to aggregate.
var ErrDataUnavailable = errors.New("ledger data unavailable")

// ErrUnknownTool indicates the model requested a tool name that is not in
// the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// UpstreamError is a failure of the language-model provider. It is the only
// error class allowed to produce a user-visible failure response.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream model error (status %d): %s", e.Status, e.Message)
}

// ValidationError is a malformed request, reported with field-level detail.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}
