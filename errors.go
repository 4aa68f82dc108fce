package ivfgo

import (
	"errors"

	"github.com/hupe1980/ivfgo/blobstore"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/ivf"
)

var (
	// ErrClosed is returned by every Registry operation after Close.
	ErrClosed = errors.New("registry closed")

	// ErrNotTrained is returned by Search on an untrained index.
	ErrNotTrained = ivf.ErrNotTrained

	// ErrInsufficientTrainingData is returned when there are fewer training vectors than clusters.
	ErrInsufficientTrainingData = ivf.ErrInsufficientTrainingData

	// ErrInvalidTrainingSet is returned for empty or ragged training sets.
	ErrInvalidTrainingSet = ivf.ErrInvalidTrainingSet

	// ErrCorruptIndex is returned when a persisted index cannot be decoded.
	ErrCorruptIndex = ivf.ErrCorruptIndex

	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = ivf.ErrInvalidK

	// ErrInvalidOptions is returned for non-positive nlist or dimension.
	ErrInvalidOptions = ivf.ErrInvalidOptions

	// ErrInvalidFilter is returned when a filter value is not a scalar.
	ErrInvalidFilter = ivf.ErrInvalidFilter

	// ErrUnknownMetric is returned for an unsupported metric selector.
	ErrUnknownMetric = distance.ErrUnknownMetric

	// ErrNotFound is returned by blob stores for missing blobs.
	ErrNotFound = blobstore.ErrNotFound
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch = distance.ErrDimensionMismatch

// PersistenceError wraps an I/O failure while saving or loading an index.
type PersistenceError = ivf.PersistenceError
