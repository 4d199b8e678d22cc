package preprocess

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSkeleton is returned when no skeleton is set.
	ErrNoSkeleton = errors.New("no skeleton set")
	// ErrNoSchema is returned when no feature schema is set.
	ErrNoSchema = errors.New("no feature schema set")
	// ErrNoAnimations is returned when no usable source animation exists.
	ErrNoAnimations = errors.New("no source animations")
	// ErrNoMirrorTable is returned when mirroring is enabled without a table.
	ErrNoMirrorTable = errors.New("mirroring enabled without a mirror table")
)

// ValidationError holds every problem found by Validate.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("preprocess validation failed: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Problems
}
