package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Simple", []float32{0, 0}, []float32{3, 4}, 5},
		{"Unit", []float32{0, 0}, []float32{0, 1}, 1},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := L2(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-5)

			back, err := L2(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, got, back)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"Scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"ZeroNorm", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-5)

			back, err := Cosine(tt.b, tt.a)
			require.NoError(t, err)
			assert.InDelta(t, got, back, 1e-6)
		})
	}
}

func TestDot(t *testing.T) {
	got, err := Dot([]float32{1, 2, 3}, []float32{4, 5, 6})
	require.NoError(t, err)
	assert.InDelta(t, float32(32), got, 1e-5)

	back, err := Dot([]float32{4, 5, 6}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, got, back)
}

func TestDimensionMismatch(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2}

	for _, fn := range []func(a, b []float32) (float32, error){L2, Cosine, Dot} {
		_, err := fn(a, b)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
	}

	for _, m := range []Metric{MetricL2, MetricCosine, MetricDot} {
		_, err := Score(m, a, b)
		var dm *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm, m.String())

		_, err = BatchScore(m, a, [][]float32{a, b})
		assert.ErrorAs(t, err, &dm, m.String())
	}
}

func TestMetric(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "l2", MetricL2.String())
		assert.Equal(t, "cosine", MetricCosine.String())
		assert.Equal(t, "dot", MetricDot.String())
		assert.Equal(t, "unknown(99)", Metric(99).String())
	})

	t.Run("Parse", func(t *testing.T) {
		for in, want := range map[string]Metric{
			"l2":            MetricL2,
			"L2":            MetricL2,
			"euclidean":     MetricL2,
			"cosine":        MetricCosine,
			"dot":           MetricDot,
			"inner_product": MetricDot,
		} {
			got, err := ParseMetric(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}

		_, err := ParseMetric("hamming")
		assert.ErrorIs(t, err, ErrUnknownMetric)
	})

	t.Run("Text", func(t *testing.T) {
		b, err := MetricCosine.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, "cosine", string(b))

		var m Metric
		require.NoError(t, m.UnmarshalText([]byte("dot")))
		assert.Equal(t, MetricDot, m)

		_, err = Metric(42).MarshalText()
		assert.ErrorIs(t, err, ErrUnknownMetric)
	})

	t.Run("Direction", func(t *testing.T) {
		assert.True(t, MetricL2.Better(0, 1))
		assert.False(t, MetricL2.Better(1, 1))
		assert.True(t, MetricCosine.Better(1, 0))
		assert.True(t, MetricDot.Better(5, -5))

		assert.Negative(t, MetricL2.Compare(0, 1))
		assert.Positive(t, MetricDot.Compare(0, 1))
		assert.Zero(t, MetricCosine.Compare(0.5, 0.5))
	})

	t.Run("Provider", func(t *testing.T) {
		f, err := Provider(MetricL2)
		require.NoError(t, err)
		assert.InDelta(t, float32(5), f([]float32{0, 0}, []float32{3, 4}), 1e-5)

		_, err = Provider(Metric(99))
		assert.ErrorIs(t, err, ErrUnknownMetric)
	})
}

func TestBatch(t *testing.T) {
	query := []float32{1, 0}
	vs := [][]float32{{1, 0}, {0, 1}, {2, 0}}

	l2s, err := BatchL2(query, vs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1.4142135, 1}, l2s, 1e-5)

	coss, err := BatchCosine(query, vs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 0, 1}, coss, 1e-5)

	dots, err := BatchDot(query, vs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 0, 2}, dots, 1e-5)

	empty, err := BatchDot(query, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTopK(t *testing.T) {
	query := []float32{0, 0}
	vs := [][]float32{{3, 0}, {1, 0}, {0, 1}, {2, 0}}

	idx, err := TopK(MetricL2, query, vs, 3)
	require.NoError(t, err)
	// {1,0} and {0,1} tie at distance 1 and keep input order.
	assert.Equal(t, []int{1, 2, 3}, idx)

	idx, err = TopK(MetricDot, []float32{1, 0}, vs, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 1, 2}, idx)

	idx, err = TopK(MetricCosine, []float32{1, 0}, vs, 0)
	require.NoError(t, err)
	assert.Empty(t, idx)
}
