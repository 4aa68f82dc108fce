// Package kmeans implements k-means clustering for IVF coarse quantizer training.
//
// Clustering always uses L2 geometry, independent of the metric an index later
// scores with. Initialization and empty-cluster reseeding draw from a single
// seeded random stream, so identical input yields identical centroids.
package kmeans
