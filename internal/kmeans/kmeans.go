package kmeans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"runtime"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ivfgo/distance"
)

var (
	// ErrInsufficientTrainingData is returned when there are fewer training vectors than clusters.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrInvalidTrainingSet is returned for empty training sets or inconsistent vector dimensions.
	ErrInvalidTrainingSet = errors.New("invalid training set")
)

// epsilon keeps the convergence ratio finite for all-zero centroids.
const epsilon = 1e-8

// minChunk is the smallest number of vectors handed to one assignment worker.
const minChunk = 256

// Options contains configuration options for the trainer.
type Options struct {
	// MaxIterations bounds the number of Lloyd iterations.
	MaxIterations int

	// Seed initializes the random stream used for initialization and empty-cluster reseeding.
	Seed int64

	// Tolerance is the relative centroid movement below which training stops.
	Tolerance float64

	// Workers is the number of goroutines used by the assignment step.
	Workers int

	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the trainer.
var DefaultOptions = Options{
	MaxIterations: 100,
	Seed:          42,
	Tolerance:     0.001,
}

// Trainer learns a fixed number of centroids with Lloyd's algorithm under L2.
type Trainer struct {
	k    int
	opts Options
}

// New creates a trainer producing k centroids.
func New(k int, optFns ...func(o *Options)) *Trainer {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions.Tolerance
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Trainer{k: k, opts: opts}
}

// K returns the number of centroids the trainer produces.
func (t *Trainer) K() int { return t.k }

// Validate checks a training set and returns its dimension.
func Validate(vectors [][]float32, k int) (int, error) {
	if len(vectors) == 0 {
		return 0, fmt.Errorf("%w: no training vectors", ErrInvalidTrainingSet)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: vector 0 is empty", ErrInvalidTrainingSet)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrInvalidTrainingSet, i, len(v), dim)
		}
	}
	if k <= 0 {
		return 0, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidTrainingSet, k)
	}
	if len(vectors) < k {
		return 0, fmt.Errorf("%w: need at least %d vectors, got %d", ErrInsufficientTrainingData, k, len(vectors))
	}
	return dim, nil
}

// Train runs k-means over vectors and returns k centroids of the input dimension.
//
// Training never fails for lack of convergence: once MaxIterations is reached
// the last computed centroids are returned.
func (t *Trainer) Train(ctx context.Context, vectors [][]float32) ([][]float32, error) {
	dim, err := Validate(vectors, t.k)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(t.opts.Seed))
	centroids := t.initialize(rng, vectors, dim)

	assignments := make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < t.opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed, err := t.assign(ctx, vectors, centroids, assignments)
		if err != nil {
			return nil, err
		}

		next := t.update(rng, vectors, assignments, dim)

		if !changed || t.converged(centroids, next) {
			t.opts.Logger.Debug("kmeans converged", "iteration", iter+1, "k", t.k)
			return next, nil
		}
		centroids = next
	}

	t.opts.Logger.Debug("kmeans reached max iterations", "iterations", t.opts.MaxIterations, "k", t.k)
	return centroids, nil
}

// initialize samples k distinct training vectors without replacement.
func (t *Trainer) initialize(rng *rand.Rand, vectors [][]float32, dim int) [][]float32 {
	n := len(vectors)
	picked := bitset.New(uint(n))
	centroids := make([][]float32, 0, t.k)

	for len(centroids) < t.k {
		idx := rng.Intn(n)
		if picked.Test(uint(idx)) {
			continue
		}
		picked.Set(uint(idx))
		c := make([]float32, dim)
		copy(c, vectors[idx])
		centroids = append(centroids, c)
	}
	return centroids
}

// assign moves every vector to its nearest centroid and reports whether any
// assignment changed. Chunks are independent so the result does not depend
// on the worker count.
func (t *Trainer) assign(ctx context.Context, vectors, centroids [][]float32, assignments []int) (bool, error) {
	n := len(vectors)
	chunk := (n + t.opts.Workers - 1) / t.opts.Workers
	if chunk < minChunk {
		chunk = minChunk
	}

	numChunks := (n + chunk - 1) / chunk
	changed := make([]bool, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)

	for c := 0; c < numChunks; c++ {
		start := c * chunk
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				best := Nearest(vectors[i], centroids)
				if assignments[i] != best {
					assignments[i] = best
					changed[c] = true
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, c := range changed {
		if c {
			return true, nil
		}
	}
	return false, nil
}

// update recomputes centroids as the mean of their members, reseeding empty
// clusters with a random training vector.
func (t *Trainer) update(rng *rand.Rand, vectors [][]float32, assignments []int, dim int) [][]float32 {
	sums := make([][]float64, t.k)
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	counts := make([]int, t.k)

	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		s := sums[c]
		for d, x := range v {
			s[d] += float64(x)
		}
	}

	next := make([][]float32, t.k)
	for j := 0; j < t.k; j++ {
		c := make([]float32, dim)
		if counts[j] > 0 {
			inv := 1.0 / float64(counts[j])
			for d := range c {
				c[d] = float32(sums[j][d] * inv)
			}
		} else {
			idx := rng.Intn(len(vectors))
			copy(c, vectors[idx])
			t.opts.Logger.Debug("kmeans reseeded empty cluster", "cluster", j, "vector", idx)
		}
		next[j] = c
	}
	return next
}

func (t *Trainer) converged(prev, next [][]float32) bool {
	var change, norm float64
	for j := range next {
		change += math.Sqrt(float64(distance.SquaredL2(prev[j], next[j])))
		norm += float64(distance.Norm(next[j]))
	}
	return change/(norm+epsilon) < t.opts.Tolerance
}

// Nearest returns the index of the centroid closest to v under L2.
// Ties resolve to the lowest index. It returns -1 for an empty centroid set.
func Nearest(v []float32, centroids [][]float32) int {
	best := -1
	bestDist := float32(math.MaxFloat32)
	for j, c := range centroids {
		d := distance.SquaredL2(v, c)
		if best == -1 || d < bestDist {
			best = j
			bestDist = d
		}
	}
	return best
}

// Assign maps every vector to its nearest centroid under L2.
func Assign(vectors, centroids [][]float32) []int {
	out := make([]int, len(vectors))
	for i, v := range vectors {
		out[i] = Nearest(v, centroids)
	}
	return out
}
