package ivfgo

import (
	"github.com/hupe1980/ivfgo/blobstore"
	"github.com/hupe1980/ivfgo/codec"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/ivf"
	"github.com/hupe1980/ivfgo/resource"
)

// DefaultAutoPersistEvery is the number of additions between background
// persists of a named index.
const DefaultAutoPersistEvery = 1000

type options struct {
	store            blobstore.Store
	nlist            int
	dimension        int
	metric           distance.Metric
	autoPersistEvery int
	logger           *Logger
	metricsCollector MetricsCollector
	codec            codec.Codec
	compression      ivf.Compression
	rc               *resource.Controller
	trainOptions     []func(*ivf.Options)
}

func defaultOptions() options {
	return options{
		nlist:            ivf.DefaultOptions.NList,
		metric:           ivf.DefaultOptions.Metric,
		autoPersistEvery: DefaultAutoPersistEvery,
		codec:            codec.Default,
	}
}

// Option configures a Registry.
type Option func(*options)

// WithBlobStore sets where index blobs are persisted.
// Defaults to an in-memory store.
func WithBlobStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithDefaults sets the parameters of the empty index created when a name
// has no persisted blob. A zero dimension means "take it from the first
// vector or query seen for that name".
func WithDefaults(nlist, dimension int, metric distance.Metric) Option {
	return func(o *options) {
		o.nlist = nlist
		o.dimension = dimension
		o.metric = metric
	}
}

// WithAutoPersistEvery sets how many additions trigger a background persist.
// Zero disables auto-persistence.
func WithAutoPersistEvery(n int) Option {
	return func(o *options) {
		o.autoPersistEvery = n
	}
}

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector sets a metrics collector for monitoring operations.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithCodec sets the metadata codec for persisted indexes.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression sets the compression of persisted indexes.
func WithCompression(c ivf.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceController bounds background persists, persistence IO and
// training memory. A nil controller imposes no limits.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithTrainOptions adjusts the ivf.Options of every index the registry
// creates, e.g. MaxIterations or Seed. NList, Dimension and Metric are
// always taken from the call.
func WithTrainOptions(fns ...func(*ivf.Options)) Option {
	return func(o *options) {
		o.trainOptions = append(o.trainOptions, fns...)
	}
}
