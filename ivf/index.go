package ivf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/internal/kmeans"
	"github.com/hupe1980/ivfgo/internal/queue"
)

// SearchResult is a scored record returned by Search. Its metadata map is a
// copy owned by the caller.
type SearchResult struct {
	DocID    string
	Score    float32
	Metadata map[string]any
}

// Stats summarizes an index. Cluster size fields are zero when untrained.
type Stats struct {
	NList            int
	Dimension        int
	Metric           distance.Metric
	Trained          bool
	Generation       string
	TotalVectors     int
	MinClusterSize   int
	MaxClusterSize   int
	AvgClusterSize   float64
	NonEmptyClusters int
}

// Index is an inverted file index over fixed-dimension float32 vectors.
//
// Train and Clear take the index lock exclusively; every other operation
// shares it. Each cluster list carries its own lock, so adds to different
// clusters proceed in parallel and searches never observe a partially
// written record.
type Index struct {
	mu   sync.RWMutex
	opts Options
	dist distance.Func

	centroids  [][]float32
	trained    bool
	generation string
	lists      []*invertedList
	postings   *postings

	nextOrd atomic.Uint32
}

// New creates an untrained index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NList <= 0 || opts.NList > MaxNList {
		return nil, fmt.Errorf("%w: nlist must be in [1, %d], got %d", ErrInvalidOptions, MaxNList, opts.NList)
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidOptions, opts.Dimension)
	}
	dist, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Index{
		opts:     opts,
		dist:     dist,
		lists:    newLists(opts.NList),
		postings: newPostings(),
	}, nil
}

// NList returns the number of clusters.
func (idx *Index) NList() int { return idx.opts.NList }

// Dimension returns the vector dimensionality.
func (idx *Index) Dimension() int { return idx.opts.Dimension }

// Metric returns the scoring metric.
func (idx *Index) Metric() distance.Metric { return idx.opts.Metric }

// Trained reports whether the index has centroids.
func (idx *Index) Trained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

// Generation returns the identifier minted by the last successful Train,
// or "" if the index was never trained.
func (idx *Index) Generation() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.generation
}

// Train clusters vectors into NList centroids and discards all records.
// It can be called again to retrain; a failed Train leaves the index unchanged.
func (idx *Index) Train(ctx context.Context, vectors [][]float32) error {
	dim, err := kmeans.Validate(vectors, idx.opts.NList)
	if err != nil {
		return err
	}
	if dim != idx.opts.Dimension {
		return &distance.ErrDimensionMismatch{Expected: idx.opts.Dimension, Actual: dim}
	}

	trainer := kmeans.New(idx.opts.NList, func(o *kmeans.Options) {
		if idx.opts.MaxIterations > 0 {
			o.MaxIterations = idx.opts.MaxIterations
		}
		o.Seed = idx.opts.Seed
		o.Workers = idx.opts.TrainWorkers
		o.Logger = idx.opts.Logger
	})

	centroids, err := trainer.Train(ctx, vectors)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.centroids = centroids
	idx.trained = true
	idx.generation = uuid.NewString()
	idx.lists = newLists(idx.opts.NList)
	idx.postings = newPostings()
	idx.nextOrd.Store(0)

	idx.opts.Logger.Debug("ivf trained",
		"nlist", idx.opts.NList,
		"dimension", idx.opts.Dimension,
		"vectors", len(vectors),
		"generation", idx.generation)

	return nil
}

// AddVector routes a record to its nearest cluster. The vector and metadata
// map are copied. Duplicate doc ids are stored as separate records.
func (idx *Index) AddVector(docID string, vector []float32, metadata map[string]any) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained {
		return ErrNotTrained
	}
	if len(vector) != idx.opts.Dimension {
		return &distance.ErrDimensionMismatch{Expected: idx.opts.Dimension, Actual: len(vector)}
	}

	idx.addLocked(docID, slices.Clone(vector), maps.Clone(metadata))
	return nil
}

// AddVectors adds records in order and stops at the first error.
// It returns the number of records added.
func (idx *Index) AddVectors(records []Record) (int, error) {
	for i, r := range records {
		if err := idx.AddVector(r.DocID, r.Vector, r.Metadata); err != nil {
			return i, fmt.Errorf("record %d (%q): %w", i, r.DocID, err)
		}
	}
	return len(records), nil
}

func (idx *Index) addLocked(docID string, vector []float32, metadata map[string]any) {
	idx.appendLocked(idx.nearestCentroid(vector), docID, vector, metadata)
}

// appendLocked takes ownership of vector and metadata. Postings are updated
// before the list append so any record visible to a search is also filterable.
func (idx *Index) appendLocked(c int, docID string, vector []float32, metadata map[string]any) {
	ord := idx.nextOrd.Add(1) - 1
	idx.postings.add(ord, metadata)
	idx.lists[c].append(entry{
		Record: Record{DocID: docID, Vector: vector, Metadata: metadata},
		ord:    ord,
	})
}

// nearestCentroid returns the best-scoring cluster under the index metric,
// preferring the lowest id on ties.
func (idx *Index) nearestCentroid(v []float32) int {
	best := 0
	bestScore := idx.dist(v, idx.centroids[0])
	for j := 1; j < len(idx.centroids); j++ {
		if s := idx.dist(v, idx.centroids[j]); idx.opts.Metric.Better(s, bestScore) {
			best, bestScore = j, s
		}
	}
	return best
}

// probe returns the nprobe best clusters for query, best first.
func (idx *Index) probe(query []float32, nprobe int) []int {
	scores := make([]float32, len(idx.centroids))
	order := make([]int, len(idx.centroids))
	for j, c := range idx.centroids {
		scores[j] = idx.dist(query, c)
		order[j] = j
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return idx.opts.Metric.Compare(scores[a], scores[b])
	})
	return order[:nprobe]
}

// Search returns up to k records from the nprobe clusters closest to query,
// best first. k == 0 yields an empty result and nprobe is clamped to
// [1, NList]. Equal scores keep probe order and then insertion order.
func (idx *Index) Search(query []float32, k, nprobe int, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained {
		return nil, ErrNotTrained
	}
	if len(query) != idx.opts.Dimension {
		return nil, &distance.ErrDimensionMismatch{Expected: idx.opts.Dimension, Actual: len(query)}
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if k == 0 {
		return []SearchResult{}, nil
	}
	nprobe = min(max(nprobe, 1), idx.opts.NList)

	var allowed *roaring.Bitmap
	if len(opts.Filter) > 0 {
		bm, err := idx.postings.match(opts.Filter)
		if err != nil {
			return nil, err
		}
		if bm.IsEmpty() {
			return []SearchResult{}, nil
		}
		allowed = bm
	}

	top := queue.NewTopK(k, idx.opts.Metric.Compare)
	var candidates []entry

	for _, c := range idx.probe(query, nprobe) {
		for _, e := range idx.lists[c].snapshot() {
			if allowed != nil && !allowed.Contains(e.ord) {
				continue
			}
			top.Push(queue.Item{Pos: len(candidates), Score: idx.dist(query, e.Vector)})
			candidates = append(candidates, e)
		}
	}

	items := top.Sorted()
	results := make([]SearchResult, len(items))
	for i, it := range items {
		e := candidates[it.Pos]
		results[i] = SearchResult{
			DocID:    e.DocID,
			Score:    it.Score,
			Metadata: maps.Clone(e.Metadata),
		}
	}

	idx.opts.Logger.Debug("ivf search", "k", k, "nprobe", nprobe, "candidates", len(candidates), "results", len(results))

	return results, nil
}

// Size returns the total number of records.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, l := range idx.lists {
		n += l.len()
	}
	return n
}

// Stats returns a summary of the index.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	st := Stats{
		NList:      idx.opts.NList,
		Dimension:  idx.opts.Dimension,
		Metric:     idx.opts.Metric,
		Trained:    idx.trained,
		Generation: idx.generation,
	}
	if !idx.trained {
		return st
	}

	st.MinClusterSize = -1
	for _, l := range idx.lists {
		n := l.len()
		st.TotalVectors += n
		if st.MinClusterSize < 0 || n < st.MinClusterSize {
			st.MinClusterSize = n
		}
		st.MaxClusterSize = max(st.MaxClusterSize, n)
		if n > 0 {
			st.NonEmptyClusters++
		}
	}
	st.AvgClusterSize = float64(st.TotalVectors) / float64(idx.opts.NList)

	return st
}

// Clear removes all records and keeps the centroids.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, l := range idx.lists {
		l.reset()
	}
	idx.postings.reset()
	idx.nextOrd.Store(0)
}

// Centroids returns a copy of the centroids, or nil when untrained.
func (idx *Index) Centroids() [][]float32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained {
		return nil
	}
	out := make([][]float32, len(idx.centroids))
	for i, c := range idx.centroids {
		out[i] = slices.Clone(c)
	}
	return out
}
