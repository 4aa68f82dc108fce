package ivfgo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ivfgo/blobstore"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/ivf"
	"github.com/hupe1980/ivfgo/resource"
)

// BlobSuffix is appended to an index name to form its blob name.
const BlobSuffix = ".ivf"

// State is the lifecycle state of a named index.
type State int

const (
	// StateAbsent means no instance is live for the name.
	StateAbsent State = iota
	// StateUntrained means an instance is live but has no centroids.
	StateUntrained
	// StateTrained means an instance is live and accepts adds and searches.
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateUntrained:
		return "untrained"
	case StateTrained:
		return "trained"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// RegistryStats describes a named index.
type RegistryStats struct {
	Name  string
	State State
	ivf.Stats
}

// entry holds the live instance of one name.
//
// mu is held shared by adds and searches and exclusively while the instance
// is materialised, swapped or evicted. persistMu orders persists of the
// entry; it is always taken after mu.
type entry struct {
	mu      sync.RWMutex
	idx     *ivf.Index
	evicted bool

	persistMu sync.Mutex

	adds  atomic.Int64 // total adds since materialisation or swap
	dirty atomic.Int64 // changes not yet persisted
}

// Registry maps index names to exactly one live IVF index each. Instances
// are materialised lazily from the blob store, or created empty from the
// configured defaults when no blob exists.
//
// A Registry is safe for concurrent use.
type Registry struct {
	opts    options
	entries sync.Map // string -> *entry

	closeMu sync.RWMutex
	closed  bool
	bg      sync.WaitGroup
}

// NewRegistry creates a registry.
func NewRegistry(optFns ...Option) (*Registry, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.store == nil {
		opts.store = blobstore.NewMemoryStore()
	}
	if opts.logger == nil {
		opts.logger = NoopLogger()
	}
	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}
	if opts.nlist <= 0 {
		return nil, fmt.Errorf("%w: nlist must be positive, got %d", ErrInvalidOptions, opts.nlist)
	}
	if opts.dimension < 0 {
		return nil, fmt.Errorf("%w: dimension must not be negative, got %d", ErrInvalidOptions, opts.dimension)
	}
	if _, err := distance.Provider(opts.metric); err != nil {
		return nil, err
	}
	if opts.autoPersistEvery < 0 {
		opts.autoPersistEvery = 0
	}
	if !opts.compression.Valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidOptions, uint8(opts.compression))
	}

	return &Registry{opts: opts}, nil
}

func (r *Registry) isClosed() bool {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	return r.closed
}

// acquire returns the entry for name with its instance materialised and
// e.mu held shared. The caller must call e.mu.RUnlock. dimHint sizes a new
// empty index when no default dimension is configured.
func (r *Registry) acquire(ctx context.Context, name string, dimHint int) (*entry, error) {
	for {
		if r.isClosed() {
			return nil, ErrClosed
		}

		v, _ := r.entries.LoadOrStore(name, &entry{})
		e := v.(*entry)

		e.mu.RLock()
		if e.evicted {
			e.mu.RUnlock()
			continue
		}
		if e.idx != nil {
			return e, nil
		}
		e.mu.RUnlock()

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		if e.idx == nil {
			idx, err := r.materialise(ctx, name, dimHint)
			if err != nil {
				e.mu.Unlock()
				return nil, err
			}
			e.idx = idx
			e.adds.Store(0)
			e.dirty.Store(0)
		}
		e.mu.Unlock()
	}
}

// materialise loads name from the blob store or creates an empty index.
func (r *Registry) materialise(ctx context.Context, name string, dimHint int) (*ivf.Index, error) {
	start := time.Now()

	data, err := r.opts.store.Get(ctx, name+BlobSuffix)
	if errors.Is(err, blobstore.ErrNotFound) {
		idx, err := r.newIndex(r.opts.nlist, r.opts.dimension, r.opts.metric, dimHint)
		r.opts.logger.LogLoad(ctx, name, false, err)
		return idx, err
	}

	var idx *ivf.Index
	if err != nil {
		err = &PersistenceError{Op: "load", Name: name, Err: err}
	} else {
		lr := resource.NewLimitedReader(ctx, bytes.NewReader(data), r.opts.rc)
		idx, err = ivf.Load(lr, func(o *ivf.LoadOptions) {
			o.Logger = r.opts.logger.WithIndex(name).Logger
			o.TrainWorkers = r.indexOptions().TrainWorkers
		})
		var pe *PersistenceError
		if errors.As(err, &pe) {
			pe.Name = name
		} else if err != nil {
			err = fmt.Errorf("load %q: %w", name, err)
		}
	}

	r.opts.metricsCollector.RecordLoad(time.Since(start), err)
	r.opts.logger.LogLoad(ctx, name, true, err)
	return idx, err
}

// indexOptions returns ivf.DefaultOptions adjusted by WithTrainOptions.
func (r *Registry) indexOptions() ivf.Options {
	opts := ivf.DefaultOptions
	for _, fn := range r.opts.trainOptions {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = r.opts.logger.Logger
	}
	return opts
}

func (r *Registry) newIndex(nlist, dimension int, metric distance.Metric, dimHint int) (*ivf.Index, error) {
	if dimension == 0 {
		dimension = dimHint
	}
	return ivf.New(func(o *ivf.Options) {
		*o = r.indexOptions()
		o.NList = nlist
		o.Dimension = dimension
		o.Metric = metric
	})
}

// CreateOrTrain builds and trains a new index for name and replaces any live
// instance with it. In-flight searches on the old instance complete against
// it. The new index is persisted before returning; if persisting fails the
// trained index stays live and a *PersistenceError is returned.
func (r *Registry) CreateOrTrain(ctx context.Context, name string, nlist, dimension int, metric distance.Metric, vectors [][]float32) error {
	if r.isClosed() {
		return ErrClosed
	}

	start := time.Now()
	idx, err := r.train(ctx, nlist, dimension, metric, vectors)
	elapsed := time.Since(start)
	r.opts.metricsCollector.RecordTrain(len(vectors), elapsed, err)
	r.opts.logger.LogTrain(ctx, name, nlist, len(vectors), elapsed, err)
	if err != nil {
		return err
	}

	var e *entry
	for {
		v, _ := r.entries.LoadOrStore(name, &entry{})
		e = v.(*entry)
		e.mu.Lock()
		if !e.evicted {
			break
		}
		e.mu.Unlock()
	}
	e.idx = idx
	e.adds.Store(0)
	// Unsaved until the persist below succeeds.
	e.dirty.Store(1)
	e.mu.Unlock()

	return r.persistEntry(ctx, name, e)
}

func (r *Registry) train(ctx context.Context, nlist, dimension int, metric distance.Metric, vectors [][]float32) (*ivf.Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidOptions, dimension)
	}
	idx, err := r.newIndex(nlist, dimension, metric, 0)
	if err != nil {
		return nil, err
	}

	// Scratch: per-cluster float64 sums, the new centroids and assignments.
	scratch := int64(nlist)*int64(dimension)*12 + int64(len(vectors))*8
	if err := r.opts.rc.AcquireMemory(ctx, scratch); err != nil {
		return nil, err
	}
	defer r.opts.rc.ReleaseMemory(scratch)

	if err := idx.Train(ctx, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// AddVector adds a record to the named index. It is a silent no-op while the
// index is untrained, so documents may arrive before training completes.
func (r *Registry) AddVector(ctx context.Context, name, docID string, vector []float32, metadata map[string]any) error {
	e, err := r.acquire(ctx, name, len(vector))
	if err != nil {
		return err
	}
	defer e.mu.RUnlock()

	idx := e.idx
	if !idx.Trained() {
		r.opts.logger.DebugContext(ctx, "add skipped on untrained index", "index", name, "doc_id", docID)
		return nil
	}

	start := time.Now()
	err = idx.AddVector(docID, vector, metadata)
	r.opts.metricsCollector.RecordAdd(time.Since(start), err)
	r.opts.logger.LogAdd(ctx, name, docID, err)
	if err != nil {
		return err
	}

	e.dirty.Add(1)
	if every := int64(r.opts.autoPersistEvery); every > 0 && e.adds.Add(1)%every == 0 {
		r.persistInBackground(name, e)
	}
	return nil
}

// persistInBackground persists e unless the registry is closing or no
// background slot is free.
func (r *Registry) persistInBackground(name string, e *entry) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}
	if !r.opts.rc.TryAcquireBackground() {
		r.opts.logger.Debug("auto-persist skipped, no background slot", "index", name)
		return
	}

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		defer r.opts.rc.ReleaseBackground()
		// Errors are logged by persistEntry.
		_ = r.persistEntry(context.Background(), name, e)
	}()
}

// Search queries the named index.
func (r *Registry) Search(ctx context.Context, name string, query []float32, k, nprobe int, optFns ...func(*ivf.SearchOptions)) ([]ivf.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := r.acquire(ctx, name, len(query))
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	start := time.Now()
	results, err := e.idx.Search(query, k, nprobe, optFns...)
	r.opts.metricsCollector.RecordSearch(k, len(results), time.Since(start), err)
	r.opts.logger.LogSearch(ctx, name, k, nprobe, len(results), err)
	return results, err
}

// Stats describes the named index, materialising it if needed.
func (r *Registry) Stats(ctx context.Context, name string) (RegistryStats, error) {
	e, err := r.acquire(ctx, name, 0)
	if err != nil {
		return RegistryStats{Name: name, State: StateAbsent}, err
	}
	defer e.mu.RUnlock()

	st := e.idx.Stats()
	return RegistryStats{Name: name, State: stateOf(e.idx), Stats: st}, nil
}

// Index returns the live instance for name, materialising it if needed. The
// instance may be replaced by a later CreateOrTrain.
func (r *Registry) Index(ctx context.Context, name string) (*ivf.Index, error) {
	e, err := r.acquire(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	return e.idx, nil
}

// State reports the state of name without materialising it.
func (r *Registry) State(name string) State {
	v, ok := r.entries.Load(name)
	if !ok {
		return StateAbsent
	}
	e := v.(*entry)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.evicted || e.idx == nil {
		return StateAbsent
	}
	return stateOf(e.idx)
}

func stateOf(idx *ivf.Index) State {
	if idx.Trained() {
		return StateTrained
	}
	return StateUntrained
}

// Names returns the sorted names of all live instances.
func (r *Registry) Names() []string {
	var names []string
	r.entries.Range(func(k, _ any) bool {
		name := k.(string)
		if r.State(name) != StateAbsent {
			names = append(names, name)
		}
		return true
	})
	slices.Sort(names)
	return names
}

// Persist writes the live instance of name to the blob store. It does
// nothing for absent names.
func (r *Registry) Persist(ctx context.Context, name string) error {
	if r.isClosed() {
		return ErrClosed
	}
	v, ok := r.entries.Load(name)
	if !ok {
		return nil
	}
	return r.persistEntry(ctx, name, v.(*entry))
}

// persistEntry saves the current instance of e.
func (r *Registry) persistEntry(ctx context.Context, name string, e *entry) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.evicted || e.idx == nil {
		return nil
	}
	return r.persistLocked(ctx, name, e)
}

// persistLocked saves e.idx. e.mu must be held.
func (r *Registry) persistLocked(ctx context.Context, name string, e *entry) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	start := time.Now()
	pending := e.dirty.Load()

	var buf bytes.Buffer
	err := e.idx.Save(resource.NewLimitedWriter(ctx, &buf, r.opts.rc),
		ivf.WithCodec(r.opts.codec),
		ivf.WithCompression(r.opts.compression))
	if err == nil {
		if perr := r.opts.store.Put(ctx, name+BlobSuffix, buf.Bytes()); perr != nil {
			err = &PersistenceError{Op: "save", Name: name, Err: perr}
		}
	}

	var pe *PersistenceError
	if errors.As(err, &pe) && pe.Name == "" {
		pe.Name = name
	}

	r.opts.metricsCollector.RecordPersist(buf.Len(), time.Since(start), err)
	r.opts.logger.LogPersist(ctx, name, buf.Len(), err)
	if err != nil {
		return err
	}

	e.dirty.Add(-pending)
	return nil
}

// Evict persists the live instance of name and drops it. The next reference
// materialises it again from the blob store. If persisting fails the
// instance stays live and the error is returned.
func (r *Registry) Evict(ctx context.Context, name string) error {
	if r.isClosed() {
		return ErrClosed
	}
	v, ok := r.entries.Load(name)
	if !ok {
		return nil
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil
	}
	if e.idx != nil {
		if err := r.persistLocked(ctx, name, e); err != nil {
			return err
		}
	}
	e.evicted = true
	e.idx = nil
	r.entries.CompareAndDelete(name, e)
	return nil
}

// Close waits for background persists, persists every instance with
// unsaved additions and closes the blob store if it implements io.Closer.
// Further operations return ErrClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return nil
	}
	r.closed = true
	r.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	r.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		if e.dirty.Load() > 0 {
			if err := r.persistEntry(ctx, k.(string), e); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})

	if c, ok := r.opts.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
