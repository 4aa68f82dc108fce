package distance

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrUnknownMetric is returned when a metric selector is not recognized.
var ErrUnknownMetric = errors.New("unknown metric")

// ErrDimensionMismatch indicates that two vectors have different lengths.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricL2 is the Euclidean distance. Lower is more similar.
	MetricL2 Metric = iota
	// MetricCosine is the cosine similarity. Higher is more similar.
	MetricCosine
	// MetricDot is the inner product. Higher is more similar.
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric converts a metric name into a Metric.
// Matching is case-insensitive and accepts common aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean", "l2_norm":
		return MetricL2, nil
	case "cosine", "cos":
		return MetricCosine, nil
	case "dot", "dot_product", "inner_product", "ip":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// Validate returns ErrUnknownMetric if m is not a supported metric.
func (m Metric) Validate() error {
	switch m {
	case MetricL2, MetricCosine, MetricDot:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// HigherIsBetter reports whether larger scores mean more similar vectors.
func (m Metric) HigherIsBetter() bool {
	return m != MetricL2
}

// Better reports whether score a is strictly better than score b under m.
func (m Metric) Better(a, b float32) bool {
	if m.HigherIsBetter() {
		return a > b
	}
	return a < b
}

// Compare orders two scores in the metric's preferred direction.
// It returns a negative number when a ranks before b.
func (m Metric) Compare(a, b float32) int {
	if m.HigherIsBetter() {
		return cmp.Compare(b, a)
	}
	return cmp.Compare(a, b)
}

// Worst returns the worst possible score under m.
func (m Metric) Worst() float32 {
	if m.HigherIsBetter() {
		return float32(math.Inf(-1))
	}
	return float32(math.Inf(1))
}

// Func is a function type for unchecked distance calculation.
type Func func(a, b []float32) float32

// Provider returns the unchecked scoring function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return l2, nil
	case MetricCosine:
		return cosine, nil
	case MetricDot:
		return dot, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
}

func checkLen(a, b []float32) error {
	if len(a) != len(b) {
		return &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	return nil
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) (float32, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	return l2(a, b), nil
}

// Cosine calculates the cosine similarity between two vectors.
// It returns 0 when either vector has zero norm.
func Cosine(a, b []float32) (float32, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	return cosine(a, b), nil
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) (float32, error) {
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	return dot(a, b), nil
}

// Score computes the score of a and b under m.
func Score(m Metric, a, b []float32) (float32, error) {
	fn, err := Provider(m)
	if err != nil {
		return 0, err
	}
	if err := checkLen(a, b); err != nil {
		return 0, err
	}
	return fn(a, b), nil
}

// SquaredL2 calculates the squared L2 distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

func l2(a, b []float32) float32 {
	return float32(math.Sqrt(float64(SquaredL2(a, b))))
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float32) float32 {
	var ab, aa, bb float32
	for i := range a {
		ab += a[i] * b[i]
		aa += a[i] * a[i]
		bb += b[i] * b[i]
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (float32(math.Sqrt(float64(aa))) * float32(math.Sqrt(float64(bb))))
}

// BatchScore scores query against every vector in vs under m.
// The result has the same length and order as vs.
func BatchScore(m Metric, query []float32, vs [][]float32) ([]float32, error) {
	fn, err := Provider(m)
	if err != nil {
		return nil, err
	}
	scores := make([]float32, len(vs))
	for i, v := range vs {
		if err := checkLen(query, v); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		scores[i] = fn(query, v)
	}
	return scores, nil
}

// BatchL2 computes the L2 distance from query to every vector in vs.
func BatchL2(query []float32, vs [][]float32) ([]float32, error) {
	return BatchScore(MetricL2, query, vs)
}

// BatchCosine computes the cosine similarity from query to every vector in vs.
func BatchCosine(query []float32, vs [][]float32) ([]float32, error) {
	return BatchScore(MetricCosine, query, vs)
}

// BatchDot computes the dot product from query to every vector in vs.
func BatchDot(query []float32, vs [][]float32) ([]float32, error) {
	return BatchScore(MetricDot, query, vs)
}

// TopK returns the indices of the min(k, len(vs)) vectors that score best
// against query under m, best first. Equal scores keep their input order.
func TopK(m Metric, query []float32, vs [][]float32, k int) ([]int, error) {
	scores, err := BatchScore(m, query, vs)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return m.Compare(scores[a], scores[b])
	})
	if k < 0 {
		k = 0
	}
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx, nil
}
