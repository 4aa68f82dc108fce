package kmeans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ivfgo/internal/testutil"
)

func TestTrain(t *testing.T) {
	ctx := context.Background()
	// 2 clusters: around (0,0) and (10,10)
	vecs := [][]float32{
		{0, 0}, {0, 1}, {1, 0},
		{10, 10}, {10, 11}, {11, 10},
	}

	centroids, err := New(2).Train(ctx, vecs)
	require.NoError(t, err)
	require.Len(t, centroids, 2)
	for _, c := range centroids {
		assert.Len(t, c, 2)
	}

	p1 := Nearest([]float32{0.5, 0.5}, centroids)
	p2 := Nearest([]float32{10.5, 10.5}, centroids)
	assert.NotEqual(t, p1, p2)

	assert.InDeltaSlice(t, []float32{1.0 / 3, 1.0 / 3}, centroids[p1], 1e-5)
	assert.InDeltaSlice(t, []float32{31.0 / 3, 31.0 / 3}, centroids[p2], 1e-5)
}

func TestTrain_Deterministic(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)
	vecs := rng.Vectors(500, 8)

	a, err := New(10, func(o *Options) { o.Workers = 1 }).Train(ctx, vecs)
	require.NoError(t, err)
	b, err := New(10, func(o *Options) { o.Workers = 8 }).Train(ctx, vecs)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := New(10, func(o *Options) { o.Seed = 1 }).Train(ctx, vecs)
	require.NoError(t, err)
	assert.Len(t, c, 10)
}

func TestTrain_ExactCount(t *testing.T) {
	vecs := [][]float32{{1, 2}, {3, 4}, {5, 6}, {7, 8}}

	centroids, err := New(4).Train(context.Background(), vecs)
	require.NoError(t, err)
	assert.ElementsMatch(t, vecs, centroids)
}

func TestTrain_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("InsufficientTrainingData", func(t *testing.T) {
		_, err := New(3).Train(ctx, [][]float32{{0, 0}, {1, 1}})
		assert.ErrorIs(t, err, ErrInsufficientTrainingData)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := New(1).Train(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidTrainingSet)
	})

	t.Run("InconsistentDimensions", func(t *testing.T) {
		_, err := New(1).Train(ctx, [][]float32{{0, 0}, {1, 1, 1}})
		assert.ErrorIs(t, err, ErrInvalidTrainingSet)
	})

	t.Run("ZeroLengthVector", func(t *testing.T) {
		_, err := New(1).Train(ctx, [][]float32{{}, {}})
		assert.ErrorIs(t, err, ErrInvalidTrainingSet)
	})
}

func TestTrain_EmptyClusterReseed(t *testing.T) {
	// Duplicate points force one cluster to lose all members.
	vecs := [][]float32{{1, 1}, {1, 1}, {1, 1}}

	centroids, err := New(2, func(o *Options) { o.MaxIterations = 5 }).Train(context.Background(), vecs)
	require.NoError(t, err)
	require.Len(t, centroids, 2)
	for _, c := range centroids {
		assert.Equal(t, []float32{1, 1}, c)
	}
}

func TestTrain_MaxIterations(t *testing.T) {
	rng := testutil.NewRNG(3)
	vecs := rng.Vectors(200, 4)

	centroids, err := New(16, func(o *Options) {
		o.MaxIterations = 1
		o.Tolerance = 1e-12
	}).Train(context.Background(), vecs)
	require.NoError(t, err)
	assert.Len(t, centroids, 16)
}

func TestTrain_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vecs := testutil.NewRNG(1).Vectors(100, 2)
	_, err := New(10).Train(ctx, vecs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNearest(t *testing.T) {
	centroids := [][]float32{
		{0, 0},
		{10, 10},
		{0, 0},
	}

	assert.Equal(t, 0, Nearest([]float32{1, 1}, centroids), "ties resolve to lowest index")
	assert.Equal(t, 1, Nearest([]float32{9, 9}, centroids))
	assert.Equal(t, -1, Nearest([]float32{1, 1}, nil))

	assert.Equal(t, []int{0, 1}, Assign([][]float32{{1, 1}, {9, 9}}, centroids))
}
