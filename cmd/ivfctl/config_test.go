package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ivfgo/blobstore"
	"github.com/hupe1980/ivfgo/blobstore/sqlite"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/ivf"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := loadConfig("")
		require.NoError(t, err)
		assert.Equal(t, defaultConfig(), cfg)
		assert.Equal(t, "local", cfg.Store.Backend)
		assert.Equal(t, distance.MetricL2, cfg.Index.Metric)
	})

	t.Run("File", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "ivfctl.toml", `
log_level = "debug"
log_format = "json"

[store]
backend = "sqlite"
path = "/tmp/blobs.db"

[index]
nlist = 16
dimension = 3
metric = "cosine"
compression = "zstd"
codec = "json"
auto_persist_every = 10

[resources]
max_background_workers = 2
`)
		cfg, err := loadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "sqlite", cfg.Store.Backend)
		assert.Equal(t, 16, cfg.Index.NList)
		assert.Equal(t, 3, cfg.Index.Dimension)
		assert.Equal(t, distance.MetricCosine, cfg.Index.Metric)
		assert.Equal(t, ivf.CompressionZSTD, cfg.Index.Compression)
		assert.Equal(t, "json", cfg.Index.Codec)
		assert.Equal(t, 10, cfg.Index.AutoPersistEvery)
		assert.Equal(t, int64(2), cfg.Resources.MaxBackgroundWorkers)
		// Unset keys keep their defaults.
		assert.Equal(t, ivf.DefaultOptions.Seed, cfg.Index.Seed)
	})

	t.Run("InvalidMetric", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.toml", "[index]\nmetric = \"hamming\"\n")
		_, err := loadConfig(path)
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestConfig_Logger(t *testing.T) {
	cfg := defaultConfig()
	var buf bytes.Buffer

	cfg.LogLevel = "info"
	cfg.LogFormat = "json"
	l, err := cfg.logger(&buf)
	require.NoError(t, err)
	l.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.LogLevel = "loud"
	_, err = cfg.logger(&buf)
	assert.Error(t, err)

	cfg.LogLevel = "info"
	cfg.LogFormat = "xml"
	_, err = cfg.logger(&buf)
	assert.Error(t, err)
}

func TestConfig_OpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig()

	cfg.Store.Backend = "memory"
	s, err := cfg.openStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.MemoryStore{}, s)

	cfg.Store.Backend = "local"
	cfg.Store.Path = t.TempDir()
	s, err = cfg.openStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, s)

	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "blobs.db")
	s, err = cfg.openStore(ctx)
	require.NoError(t, err)
	require.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.(*sqlite.Store).Close())

	cfg.Store.Backend = "ftp"
	_, err = cfg.openStore(ctx)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestConfig_OpenRegistryUnknownCodec(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Index.Codec = "msgpack"

	_, err := cfg.openRegistry(context.Background(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown codec")
}

func TestParseVector(t *testing.T) {
	v, err := parseVector("0, 1.5,-2")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1.5, -2}, v)

	_, err = parseVector("1,x")
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter([]string{"lang=go", "stars=10", "archived=false"})
	require.NoError(t, err)
	assert.Equal(t, ivf.Filter{"lang": "go", "stars": 10.0, "archived": false}, f)

	f, err = parseFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = parseFilter([]string{"novalue"})
	assert.Error(t, err)
}

func TestReadRecords(t *testing.T) {
	recs, err := readRecords(bytes.NewBufferString(`{"id":"a","vector":[0,0],"metadata":{"lang":"go"}}

{"id":"b","vector":[0,1]}
`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, []float32{0, 1}, recs[1].Vector)
	assert.Equal(t, map[string]any{"lang": "go"}, recs[0].Metadata)

	_, err = readRecords(bytes.NewBufferString(`{"id":"a"}`))
	assert.ErrorContains(t, err, "line 1")

	_, err = readRecords(bytes.NewBufferString("not json\n"))
	assert.Error(t, err)

	_, err = readRecords(bytes.NewBufferString(""))
	assert.Error(t, err)
}
