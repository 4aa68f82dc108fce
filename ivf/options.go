package ivf

import (
	"log/slog"

	"github.com/hupe1980/ivfgo/codec"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/internal/compress"
)

// Options contains configuration options for the IVF index.
type Options struct {
	// NList is the number of clusters. It must be > 0.
	NList int

	// Dimension is the fixed vector dimensionality. It must be > 0.
	Dimension int

	// Metric scores queries against centroids and records.
	// Training always clusters under L2.
	Metric distance.Metric

	// MaxIterations bounds k-means training.
	MaxIterations int

	// Seed makes training reproducible.
	Seed int64

	// TrainWorkers is the number of goroutines used for k-means assignment.
	// Zero means GOMAXPROCS.
	TrainWorkers int

	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
}

// MaxNList bounds the number of clusters of an index.
const MaxNList = 1 << 20

// DefaultOptions contains the default configuration options for the IVF index.
var DefaultOptions = Options{
	NList:         100,
	Metric:        distance.MetricL2,
	MaxIterations: 100,
	Seed:          42,
}

// Compression selects block compression for saved indexes.
type Compression = compress.Algorithm

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// ParseCompression converts "none", "lz4" or "zstd" into a Compression.
func ParseCompression(s string) (Compression, error) {
	return compress.ParseAlgorithm(s)
}

// SaveOptions configures Save.
type SaveOptions struct {
	// Codec encodes record metadata. Defaults to codec.Default.
	Codec codec.Codec

	// Compression applied to the body. Defaults to CompressionNone.
	Compression Compression
}

// WithCodec sets the metadata codec used by Save.
func WithCodec(c codec.Codec) func(*SaveOptions) {
	return func(o *SaveOptions) { o.Codec = c }
}

// WithCompression sets the body compression used by Save.
func WithCompression(c Compression) func(*SaveOptions) {
	return func(o *SaveOptions) { o.Compression = c }
}

// LoadOptions configures Load.
type LoadOptions struct {
	// TrainWorkers and Logger are applied to the loaded index; everything
	// else comes from the file.
	TrainWorkers int
	Logger       *slog.Logger
}

// WithLoadLogger sets the logger of the loaded index.
func WithLoadLogger(l *slog.Logger) func(*LoadOptions) {
	return func(o *LoadOptions) { o.Logger = l }
}

// SearchOptions configures a single search.
type SearchOptions struct {
	// Filter restricts candidates to records whose metadata matches.
	Filter Filter
}

// WithFilter restricts a search to records matching f.
func WithFilter(f Filter) func(*SearchOptions) {
	return func(o *SearchOptions) { o.Filter = f }
}
