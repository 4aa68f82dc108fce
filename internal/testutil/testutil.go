// Package testutil provides deterministic data generators for tests.
//
// It is intended for use in tests only.
package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Vector generates a random vector with values in range [-1, 1).
func (r *RNG) Vector(dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vec := make([]float32, dim)
	for j := range vec {
		vec[j] = r.rand.Float32()*2 - 1
	}
	return vec
}

// Vectors generates num random vectors with values in range [-1, 1).
// Uses a single backing array for efficiency.
func (r *RNG) Vectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = r.rand.Float32()*2 - 1
		}
		vectors[i] = vec
	}
	return vectors
}

// ClusteredVectors generates vectors around well separated cluster centers.
// Vector i belongs to cluster i % clusters; spread is the noise amplitude.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([][]float32, clusters)
	for c := range centers {
		center := make([]float32, dim)
		for j := range center {
			center[j] = float32(c*10) + r.rand.Float32()
		}
		centers[c] = center
	}

	vectors := make([][]float32, num)
	for i := range num {
		center := centers[i%clusters]
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = center[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}
	return vectors
}

// DocIDs returns num identifiers of the form prefix_i.
func DocIDs(prefix string, num int) []string {
	ids := make([]string, num)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s_%d", prefix, i)
	}
	return ids
}
