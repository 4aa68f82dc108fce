package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pelletier/go-toml/v2"

	"github.com/hupe1980/ivfgo"
	"github.com/hupe1980/ivfgo/blobstore"
	minioblob "github.com/hupe1980/ivfgo/blobstore/minio"
	s3blob "github.com/hupe1980/ivfgo/blobstore/s3"
	"github.com/hupe1980/ivfgo/blobstore/sqlite"
	"github.com/hupe1980/ivfgo/codec"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/ivf"
	"github.com/hupe1980/ivfgo/resource"
)

// Config is the TOML configuration of ivfctl.
type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Store StoreConfig `toml:"store"`
	Index IndexConfig `toml:"index"`

	Resources ResourceConfig `toml:"resources"`
}

// StoreConfig selects and configures the blob store.
type StoreConfig struct {
	// Backend is one of local, memory, sqlite, s3, minio.
	Backend string `toml:"backend"`
	// Path is the directory (local) or database file (sqlite).
	Path string `toml:"path"`

	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	UsePathStyle bool   `toml:"use_path_style"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	Secure       bool   `toml:"secure"`
}

// IndexConfig holds registry defaults.
type IndexConfig struct {
	NList            int             `toml:"nlist"`
	Dimension        int             `toml:"dimension"`
	Metric           distance.Metric `toml:"metric"`
	Compression      ivf.Compression `toml:"compression"`
	Codec            string          `toml:"codec"`
	AutoPersistEvery int             `toml:"auto_persist_every"`
	MaxIterations    int             `toml:"max_iterations"`
	Seed             int64           `toml:"seed"`
}

// ResourceConfig bounds background work and persistence IO.
type ResourceConfig struct {
	MemoryLimitBytes     int64 `toml:"memory_limit_bytes"`
	MaxBackgroundWorkers int64 `toml:"max_background_workers"`
	IOLimitBytesPerSec   int64 `toml:"io_limit_bytes_per_sec"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Store: StoreConfig{
			Backend: "local",
			Path:    "ivf-data",
		},
		Index: IndexConfig{
			NList:            ivf.DefaultOptions.NList,
			Metric:           ivf.DefaultOptions.Metric,
			Codec:            codec.Default.Name(),
			AutoPersistEvery: ivfgo.DefaultAutoPersistEvery,
			MaxIterations:    ivf.DefaultOptions.MaxIterations,
			Seed:             ivf.DefaultOptions.Seed,
		},
	}
}

// loadConfig reads path on top of the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) logger(w io.Writer) (*ivfgo.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return ivfgo.NewTextLogger(w, level), nil
	case "json":
		return ivfgo.NewJSONLogger(w, level), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
}

func (c Config) openStore(ctx context.Context) (blobstore.Store, error) {
	s := c.Store
	switch strings.ToLower(s.Backend) {
	case "", "local":
		return blobstore.NewLocalStore(s.Path), nil
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "sqlite":
		return sqlite.Open(s.Path)
	case "s3":
		return s3blob.NewFromConfig(ctx, s.Bucket, func(o *s3blob.Options) {
			o.Prefix = s.Prefix
			o.Region = s.Region
			o.Endpoint = s.Endpoint
			o.UsePathStyle = s.UsePathStyle
		})
	case "minio":
		client, err := minio.New(s.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
			Secure: s.Secure,
			Region: s.Region,
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, s.Bucket, s.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}

// openRegistry builds a registry from the configuration. logw receives log
// output.
func (c Config) openRegistry(ctx context.Context, logw io.Writer) (*ivfgo.Registry, error) {
	logger, err := c.logger(logw)
	if err != nil {
		return nil, err
	}
	cd, ok := codec.ByName(c.Index.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (want one of %s)", c.Index.Codec, strings.Join(codec.Names(), ", "))
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := ivfgo.NewRegistry(
		ivfgo.WithBlobStore(store),
		ivfgo.WithDefaults(c.Index.NList, c.Index.Dimension, c.Index.Metric),
		ivfgo.WithAutoPersistEvery(c.Index.AutoPersistEvery),
		ivfgo.WithCodec(cd),
		ivfgo.WithCompression(c.Index.Compression),
		ivfgo.WithLogger(logger),
		ivfgo.WithResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes:     c.Resources.MemoryLimitBytes,
			MaxBackgroundWorkers: c.Resources.MaxBackgroundWorkers,
			IOLimitBytesPerSec:   c.Resources.IOLimitBytesPerSec,
		})),
		ivfgo.WithTrainOptions(func(o *ivf.Options) {
			o.MaxIterations = c.Index.MaxIterations
			o.Seed = c.Index.Seed
		}),
	)
	if err != nil {
		if cl, ok := store.(io.Closer); ok {
			_ = cl.Close()
		}
		return nil, err
	}
	return reg, nil
}
