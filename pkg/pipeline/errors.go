package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrUnknownActionKind = errors.New("unknown action kind")
	ErrUnsupportedURI    = errors.New("unsupported URI")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrFetchFailure      = errors.New("fetch failed")
	ErrTransformFailure  = errors.New("transform failed")
	ErrRecipeCycle       = errors.New("recipe successor cycle")
)

// UnknownActionKindError is returned by ActionRegistry.Create for a kind that
// was never registered.
type UnknownActionKindError struct {
	Kind string
}

func (e *UnknownActionKindError) Error() string {
	return fmt.Sprintf("unknown action kind %q", e.Kind)
}

func (e *UnknownActionKindError) Is(target error) bool { return target == ErrUnknownActionKind }

// UnsupportedURIError is returned when no recipe matches a URI.
type UnsupportedURIError struct {
	URI string
}

func (e *UnsupportedURIError) Error() string {
	return fmt.Sprintf("unsupported file type for URI %q", e.URI)
}

func (e *UnsupportedURIError) Is(target error) bool { return target == ErrUnsupportedURI }

// ActionError records the action that stopped a pipeline run.
type ActionError struct {
	Kind   string
	Status Status
	Err    error
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("action %q failed (status %d, %s): %v", e.Kind, int(e.Status), e.Status, e.Err)
	}
	return fmt.Sprintf("action %q failed (status %d, %s)", e.Kind, int(e.Status), e.Status)
}

func (e *ActionError) Unwrap() error { return e.Err }
