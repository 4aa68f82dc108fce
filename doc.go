// Package ivfgo provides named inverted file (IVF) vector indexes for
// approximate nearest neighbour search, persisted as blobs in a pluggable
// store.
//
// An IVF index partitions vectors into nlist clusters with k-means. A search
// scans only the nprobe clusters whose centroids are closest to the query,
// trading recall for speed.
//
// # Quick Start
//
//	ctx := context.Background()
//	reg, _ := ivfgo.NewRegistry(ivfgo.WithBlobStore(blobstore.NewLocalStore("./data")))
//	defer reg.Close(ctx)
//
//	// Train 16 clusters of 128-dimensional vectors.
//	_ = reg.CreateOrTrain(ctx, "docs", 16, 128, distance.MetricCosine, training)
//
//	_ = reg.AddVector(ctx, "docs", "doc-1", vec, map[string]any{"lang": "en"})
//
//	results, _ := reg.Search(ctx, "docs", query, 10, 4,
//	    ivf.WithFilter(ivf.Filter{"lang": "en"}))
//
// # Lifecycle
//
// The Registry keeps at most one live instance per name. The first use of a
// name loads its blob from the store, or starts an empty untrained index when
// none exists. Vectors added to an untrained index are dropped. Retraining
// builds a new instance and swaps it in atomically; concurrent searches keep
// using the old one until they finish.
//
// Indexes are persisted after each training, every WithAutoPersistEvery
// additions, on Evict and on Close.
//
// # Stores
//
// The blobstore package ships a local directory store and an in-memory store.
// Subpackages add Amazon S3 (blobstore/s3), MinIO and other S3-compatible
// servers (blobstore/minio), and SQLite (blobstore/sqlite).
//
// # Observability
//
// Structured logs go through *Logger (log/slog). Operation counters and
// latencies go to a MetricsCollector; see BasicMetricsCollector and the
// metrics/prometheus subpackage.
package ivfgo
