package ivf

import (
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/ivfgo/codec"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/internal/compress"
	"github.com/hupe1980/ivfgo/internal/hash"
)

// Save writes the full index state to w.
//
// File layout (little endian):
//
//	header: magic u32 | version u16 | compression u8 | codec name (u8 len + bytes)
//	        | raw body length u64 | CRC32-C of the raw body u32
//	body:   nlist u32 | dimension u32 | metric u8 | trained u8 | generation
//	        | centroids (trained only) | non-empty cluster bitmap (u32 len + roaring)
//	        | per non-empty cluster: record count, then docID | vector | metadata
//
// The body is compressed as one block. Adds running concurrently with Save
// may or may not be included.
func (idx *Index) Save(w io.Writer, optFns ...func(o *SaveOptions)) error {
	opts := SaveOptions{Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if !opts.Compression.Valid() {
		return fmt.Errorf("%w: %d", compress.ErrUnknownAlgorithm, uint8(opts.Compression))
	}
	if len(opts.Codec.Name()) > 255 {
		return fmt.Errorf("codec name %q too long", opts.Codec.Name())
	}

	body, err := idx.encodeBody(opts.Codec)
	if err != nil {
		return err
	}

	payload, err := compress.Compress(opts.Compression, body)
	if err != nil {
		return fmt.Errorf("compress index: %w", err)
	}

	h := encoder{buf: make([]byte, 0, fixedHeaderSize+len(opts.Codec.Name())+trailerHeaderSize)}
	h.u32(magic)
	h.u16(formatVersion)
	h.u8(uint8(opts.Compression))
	h.u8(uint8(len(opts.Codec.Name())))
	h.buf = append(h.buf, opts.Codec.Name()...)
	h.u64(uint64(len(body)))
	h.u32(hash.CRC32C(body))

	if _, err := w.Write(h.buf); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	idx.opts.Logger.Debug("ivf saved",
		"raw_bytes", len(body),
		"stored_bytes", len(payload),
		"compression", opts.Compression.String(),
		"codec", opts.Codec.Name())

	return nil
}

func (idx *Index) encodeBody(c codec.Codec) ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e := encoder{}
	e.u32(uint32(idx.opts.NList))
	e.u32(uint32(idx.opts.Dimension))
	e.u8(uint8(idx.opts.Metric))
	if idx.trained {
		e.u8(1)
	} else {
		e.u8(0)
	}
	e.bytes([]byte(idx.generation))

	if !idx.trained {
		e.u32(0)
		return e.buf, nil
	}

	for _, centroid := range idx.centroids {
		e.floats(centroid)
	}

	snapshots := make([][]entry, len(idx.lists))
	nonEmpty := roaring.New()
	for i, l := range idx.lists {
		snapshots[i] = l.snapshot()
		if len(snapshots[i]) > 0 {
			nonEmpty.Add(uint32(i))
		}
	}

	bm, err := nonEmpty.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("encode cluster bitmap: %w", err)
	}
	e.u32(uint32(len(bm)))
	e.buf = append(e.buf, bm...)

	for _, id := range nonEmpty.ToArray() {
		records := snapshots[id]
		e.uvarint(uint64(len(records)))
		for _, r := range records {
			e.bytes([]byte(r.DocID))
			e.floats(r.Vector)
			if len(r.Metadata) == 0 {
				e.uvarint(0)
				continue
			}
			md, err := c.Marshal(r.Metadata)
			if err != nil {
				return nil, fmt.Errorf("encode metadata of %q: %w", r.DocID, err)
			}
			e.bytes(md)
		}
	}

	return e.buf, nil
}

// Load reads an index written by Save. Read failures are returned as
// *PersistenceError and malformed input as ErrCorruptIndex.
func Load(r io.Reader, optFns ...func(o *LoadOptions)) (*Index, error) {
	var opts LoadOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return decode(data, opts)
}

func decode(data []byte, opts LoadOptions) (*Index, error) {
	d := decoder{buf: data}

	if m := d.u32(); d.err == nil && m != magic {
		return nil, corruptf("bad magic 0x%08x", m)
	}
	if v := d.u16(); d.err == nil && v != formatVersion {
		return nil, corruptf("unsupported version %d", v)
	}
	alg := compress.Algorithm(d.u8())
	if d.err == nil && !alg.Valid() {
		return nil, corruptf("unknown compression %d", uint8(alg))
	}
	name := string(d.take(int(d.u8())))
	rawLen := d.u64()
	sum := d.u32()
	if d.err != nil {
		return nil, d.err
	}
	c, ok := codec.ByName(name)
	if !ok {
		return nil, corruptf("unknown codec %q", name)
	}
	if rawLen > uint64(maxInt) {
		return nil, corruptf("body length %d out of range", rawLen)
	}

	body, err := compress.Decompress(alg, data[d.off:], int(rawLen))
	if err != nil {
		return nil, corruptf("decompress body: %v", err)
	}
	if got := hash.CRC32C(body); got != sum {
		return nil, corruptf("checksum mismatch: stored 0x%08x, computed 0x%08x", sum, got)
	}

	return decodeBody(body, c, opts)
}

const maxInt = int(^uint(0) >> 1)

func decodeBody(body []byte, c codec.Codec, lo LoadOptions) (*Index, error) {
	d := decoder{buf: body}

	nlist := int(d.u32())
	dim := int(d.u32())
	metric := distance.Metric(d.u8())
	trained := d.u8()
	generation := string(d.bytes())
	if d.err != nil {
		return nil, d.err
	}
	if nlist <= 0 || dim <= 0 {
		return nil, corruptf("nlist %d and dimension %d must be positive", nlist, dim)
	}
	if err := metric.Validate(); err != nil {
		return nil, corruptf("%v", err)
	}
	if trained > 1 {
		return nil, corruptf("bad trained flag %d", trained)
	}
	if nlist > MaxNList {
		return nil, corruptf("nlist %d exceeds %d", nlist, MaxNList)
	}
	if trained == 1 && uint64(nlist)*uint64(dim)*4 > uint64(d.remaining()) {
		return nil, corruptf("%d centroids of dimension %d exceed the %d remaining bytes", nlist, dim, d.remaining())
	}

	idx, err := New(func(o *Options) {
		o.NList = nlist
		o.Dimension = dim
		o.Metric = metric
		o.TrainWorkers = lo.TrainWorkers
		o.Logger = lo.Logger
	})
	if err != nil {
		return nil, corruptf("%v", err)
	}

	if trained == 1 {
		idx.centroids = make([][]float32, nlist)
		for j := range idx.centroids {
			idx.centroids[j] = d.floats(dim)
		}
		idx.trained = true
		idx.generation = generation
	}

	nonEmpty := roaring.New()
	if raw := d.take(int(d.u32())); d.err == nil && len(raw) > 0 {
		if err := nonEmpty.UnmarshalBinary(raw); err != nil {
			return nil, corruptf("cluster bitmap: %v", err)
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if !nonEmpty.IsEmpty() {
		if !idx.trained {
			return nil, corruptf("untrained index has records")
		}
		if maxID := nonEmpty.Maximum(); maxID >= uint32(nlist) {
			return nil, corruptf("cluster id %d out of range [0, %d)", maxID, nlist)
		}
	}

	// Each record takes at least two length bytes plus the vector.
	minRecord := 2 + 4*dim

	for _, id := range nonEmpty.ToArray() {
		count := d.uvarint()
		if d.err != nil {
			return nil, d.err
		}
		if count == 0 || count > uint64(d.remaining()/minRecord) {
			return nil, corruptf("cluster %d: bad record count %d", id, count)
		}
		for i := uint64(0); i < count; i++ {
			docID := string(d.bytes())
			vector := d.floats(dim)
			raw := d.bytes()
			if d.err != nil {
				return nil, d.err
			}
			var md map[string]any
			if len(raw) > 0 {
				if err := c.Unmarshal(raw, &md); err != nil {
					return nil, corruptf("metadata of %q: %v", docID, err)
				}
			}
			idx.appendLocked(int(id), docID, vector, md)
		}
	}

	if d.remaining() != 0 {
		return nil, corruptf("%d trailing bytes", d.remaining())
	}

	idx.opts.Logger.Debug("ivf loaded",
		"nlist", nlist,
		"dimension", dim,
		"metric", metric.String(),
		"trained", idx.trained)

	return idx, nil
}
