// Package s3 stores index blobs in Amazon S3.
//
// # Usage
//
//	store, err := s3.NewFromConfig(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "indexes/"
//	    o.Region = "eu-central-1"
//	})
//
//	reg, err := ivfgo.NewRegistry(ivfgo.WithBlobStore(store))
//
// Small blobs are written with a single PutObject carrying a CRC32-C
// checksum. Blobs above Options.MultipartThreshold go through the multipart
// uploader from feature/s3/manager.
package s3
