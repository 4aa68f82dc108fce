// Package ivf implements an inverted file (IVF) index for approximate nearest
// neighbor search.
//
// Training partitions the vector space into NList clusters with k-means.
// Every added vector is appended to the list of its nearest centroid, and a
// search scans only the lists of the nprobe centroids closest to the query.
//
//	idx, err := ivf.New(func(o *ivf.Options) {
//		o.NList = 256
//		o.Dimension = 768
//		o.Metric = distance.MetricCosine
//	})
//	if err := idx.Train(ctx, sample); err != nil { ... }
//	_ = idx.AddVector("doc-1", vec, map[string]any{"lang": "go"})
//	results, err := idx.Search(query, 10, 8, ivf.WithFilter(ivf.Filter{"lang": "go"}))
//
// Larger nprobe values trade speed for recall; nprobe == NList scans every list.
package ivf
