package ivf

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Filter is a metadata equality filter: a record matches when every field is
// present in its metadata with an equal value.
//
// Values must be scalars (string, bool, nil or a number). Numbers compare by
// value, so int(3) matches float64(3).
type Filter map[string]any

// postings maps field -> canonical value -> ordinals of matching records.
type postings struct {
	mu     sync.RWMutex
	fields map[string]map[string]*roaring.Bitmap
}

func newPostings() *postings {
	return &postings{fields: make(map[string]map[string]*roaring.Bitmap)}
}

// add indexes the scalar fields of md under ord. Non-scalar values are skipped.
func (p *postings) add(ord uint32, md map[string]any) {
	if len(md) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for field, v := range md {
		key, ok := valueKey(v)
		if !ok {
			continue
		}
		values, ok := p.fields[field]
		if !ok {
			values = make(map[string]*roaring.Bitmap)
			p.fields[field] = values
		}
		bm, ok := values[key]
		if !ok {
			bm = roaring.New()
			values[key] = bm
		}
		bm.Add(ord)
	}
}

// match returns the ordinals matching every pair of f as a private bitmap.
func (p *postings) match(f Filter) (*roaring.Bitmap, error) {
	keys := make(map[string]string, len(f))
	for field, v := range f {
		key, ok := valueKey(v)
		if !ok {
			return nil, fmt.Errorf("%w: field %q has unsupported value type %T", ErrInvalidFilter, field, v)
		}
		keys[field] = key
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	bms := make([]*roaring.Bitmap, 0, len(keys))
	for field, key := range keys {
		bm := p.fields[field][key]
		if bm == nil || bm.IsEmpty() {
			return roaring.New(), nil
		}
		bms = append(bms, bm)
	}
	if len(bms) == 1 {
		return bms[0].Clone(), nil
	}
	return roaring.FastAnd(bms...), nil
}

func (p *postings) reset() {
	p.mu.Lock()
	p.fields = make(map[string]map[string]*roaring.Bitmap)
	p.mu.Unlock()
}

// valueKey canonicalizes a scalar so that values equal after a codec round
// trip share a key.
func valueKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "z", true
	case string:
		return "s" + x, true
	case bool:
		if x {
			return "bt", true
		}
		return "bf", true
	case float64:
		return numberKey(x), true
	case float32:
		return numberKey(float64(x)), true
	case int:
		return numberKey(float64(x)), true
	case int8:
		return numberKey(float64(x)), true
	case int16:
		return numberKey(float64(x)), true
	case int32:
		return numberKey(float64(x)), true
	case int64:
		return numberKey(float64(x)), true
	case uint:
		return numberKey(float64(x)), true
	case uint8:
		return numberKey(float64(x)), true
	case uint16:
		return numberKey(float64(x)), true
	case uint32:
		return numberKey(float64(x)), true
	case uint64:
		return numberKey(float64(x)), true
	default:
		return "", false
	}
}

func numberKey(f float64) string {
	return "n" + strconv.FormatFloat(f, 'g', -1, 64)
}
