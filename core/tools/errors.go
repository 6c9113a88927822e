package tools

import (
	"errors"
	"fmt"
)

// ValidationError marks locally rejected tool arguments. It is returned to
// the model as a failed result but never surfaced to the provider.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrUnknownTool is wrapped into the validation failure produced for a call
// to a name absent from the registry.
var ErrUnknownTool = errors.New("unknown tool")
