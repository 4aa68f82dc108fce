package ivf

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ivfgo/internal/kmeans"
)

var (
	// ErrNotTrained is returned by operations that need centroids on an untrained index.
	ErrNotTrained = errors.New("index not trained")

	// ErrCorruptIndex is returned when persisted bytes do not decode to a valid index.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrInvalidOptions is returned for non-positive NList or Dimension.
	ErrInvalidOptions = errors.New("invalid index options")

	// ErrInvalidFilter is returned when a filter value is not a scalar.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInsufficientTrainingData is returned when there are fewer training vectors than clusters.
	ErrInsufficientTrainingData = kmeans.ErrInsufficientTrainingData

	// ErrInvalidTrainingSet is returned for empty training sets or inconsistent vector dimensions.
	ErrInvalidTrainingSet = kmeans.ErrInvalidTrainingSet
)

// PersistenceError wraps an I/O failure while saving or loading an index.
// Decoding failures are reported as ErrCorruptIndex instead.
type PersistenceError struct {
	Op   string // "save" or "load"
	Name string // index name, empty outside the registry
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptIndex, fmt.Sprintf(format, args...))
}
