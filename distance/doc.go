// Package distance provides vector distance and similarity calculations.
//
// # Supported Metrics
//
//   - MetricL2: Euclidean distance (lower is more similar)
//   - MetricCosine: Cosine similarity in [-1, 1] (higher is more similar)
//   - MetricDot: Dot product (higher is more similar)
//
// # Usage
//
//	d, err := distance.L2(a, b)
//	sim, err := distance.Cosine(a, b)
//	scores, err := distance.BatchScore(distance.MetricDot, query, vectors)
//	best, err := distance.TopK(distance.MetricL2, query, vectors, 10)
//
// Use Metric.Better and Metric.Compare instead of comparing raw scores so that
// code stays correct for both distance and similarity metrics.
package distance
