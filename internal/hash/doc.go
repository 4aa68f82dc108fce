// Package hash provides CRC32-Castagnoli checksums for index files and blob uploads.
//
//	checksum := hash.CRC32C(data)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
