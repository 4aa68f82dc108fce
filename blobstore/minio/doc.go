// Package minio stores index blobs on MinIO and other S3-compatible servers
// (Ceph, Garage, SeaweedFS) using the MinIO client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "indexes/")
//	reg, err := ivfgo.NewRegistry(ivfgo.WithBlobStore(store))
package minio
