// Package embedding serves nearest-neighbour queries over a subword
// embedding model trained offline on jamo-encoded ingredient names.
//
// The model is read from a binary artifact (see format.go). Word vectors
// and hashed character n-gram vectors are decoded lazily from the
// underlying bytes, which are normally a read-only memory mapping, so the
// large n-gram table is paged in only where queries touch it.
package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
)

// Neighbor is a vocabulary key with its cosine similarity to a query.
type Neighbor struct {
	Key   string  `json:"key"`
	Score float32 `json:"score"`
}

// Model is an immutable embedding index. It is safe for concurrent use
// until Close is called.
type Model struct {
	data        []byte
	mm          mmap.MMap
	hdr         header
	keys        []string
	lookup      map[string]int
	vecOff      int
	ngramOff    int
	norms       []float64
	fingerprint uint64
}

// Load memory-maps the artifact at path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat model: %w", err)
	}
	if st.Size() < int64(headerSize) {
		return nil, ErrTruncated
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap model: %w", err)
	}
	m, err := parse(mm)
	if err != nil {
		mm.Unmap()
		return nil, err
	}
	m.mm = mm
	return m, nil
}

// FromBytes parses an artifact held in memory. data must not be modified
// afterwards.
func FromBytes(data []byte) (*Model, error) {
	return parse(data)
}

func parse(data []byte) (*Model, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	m := &Model{
		data:   data,
		hdr:    h,
		keys:   make([]string, 0, h.count),
		lookup: make(map[string]int, h.count),
	}
	off := headerSize
	for i := 0; i < h.count; i++ {
		if off+4 > len(data) {
			return nil, ErrTruncated
		}
		n := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if off+n > len(data) {
			return nil, ErrTruncated
		}
		k := string(data[off : off+n])
		off += n
		if _, dup := m.lookup[k]; dup {
			return nil, fmt.Errorf("embedding: duplicate key %q", k)
		}
		m.lookup[k] = i
		m.keys = append(m.keys, k)
	}
	off += (4 - off%4) % 4
	m.vecOff = off
	m.ngramOff = off + 4*h.count*h.dim
	if end := m.ngramOff + 4*h.buckets*h.dim; end > len(data) {
		return nil, ErrTruncated
	}
	m.fingerprint = xxhash.Sum64(data[:m.vecOff])

	m.norms = make([]float64, h.count)
	v := make([]float32, h.dim)
	for i := range m.norms {
		m.wordVector(i, v)
		m.norms[i] = norm(v)
	}
	return m, nil
}

// Close releases the memory mapping, if any.
func (m *Model) Close() error {
	if m == nil || m.mm == nil {
		return nil
	}
	err := m.mm.Unmap()
	m.mm = nil
	m.data = nil
	return err
}

// Len returns the vocabulary size.
func (m *Model) Len() int { return len(m.keys) }

// Dim returns the vector dimension.
func (m *Model) Dim() int { return m.hdr.dim }

// Buckets returns the number of hashed n-gram vectors.
func (m *Model) Buckets() int { return m.hdr.buckets }

// NgramRange returns the character n-gram lengths used for subwords.
func (m *Model) NgramRange() (minn, maxn int) { return m.hdr.minn, m.hdr.maxn }

// Fingerprint identifies the vocabulary and model shape.
func (m *Model) Fingerprint() uint64 { return m.fingerprint }

// Contains reports whether key is a vocabulary entry.
func (m *Model) Contains(key string) bool {
	_, ok := m.lookup[key]
	return ok
}

// Keys returns the vocabulary in artifact order. Callers must not modify
// the returned slice.
func (m *Model) Keys() []string { return m.keys }

// Vector returns the embedding for key. Out-of-vocabulary keys are the
// mean of their n-gram bucket vectors; the result is all zeros when no
// n-gram applies.
func (m *Model) Vector(key string) []float32 {
	v := make([]float32, m.hdr.dim)
	if i, ok := m.lookup[key]; ok {
		m.wordVector(i, v)
		return v
	}
	if m.hdr.buckets == 0 || m.hdr.dim == 0 {
		return v
	}
	hashes := ngramHashes(key, m.hdr.minn, m.hdr.maxn, m.hdr.buckets)
	if len(hashes) == 0 {
		return v
	}
	for _, h := range hashes {
		off := m.ngramOff + 4*int(h)*m.hdr.dim
		for j := range v {
			v[j] += m.float(off + 4*j)
		}
	}
	inv := 1 / float32(len(hashes))
	for j := range v {
		v[j] *= inv
	}
	return v
}

// MostSimilar returns up to topN vocabulary entries ranked by cosine
// similarity to key, excluding key itself. Ties keep vocabulary order.
func (m *Model) MostSimilar(key string, topN int) []Neighbor {
	if topN <= 0 || m.hdr.dim == 0 || len(m.keys) == 0 {
		return nil
	}
	q := m.Vector(key)
	qn := norm(q)
	if qn == 0 {
		return nil
	}
	self, inVocab := m.lookup[key]

	type scored struct {
		idx   int
		score float64
	}
	best := make([]scored, 0, topN+1)
	off := m.vecOff
	for i := range m.keys {
		base := off + 4*i*m.hdr.dim
		if (inVocab && i == self) || m.norms[i] == 0 {
			continue
		}
		var dot float64
		for j, qv := range q {
			dot += float64(qv) * float64(m.float(base+4*j))
		}
		s := dot / (qn * m.norms[i])
		if len(best) == topN && s <= best[len(best)-1].score {
			continue
		}
		pos := sort.Search(len(best), func(k int) bool { return best[k].score < s })
		best = append(best, scored{})
		copy(best[pos+1:], best[pos:])
		best[pos] = scored{idx: i, score: s}
		if len(best) > topN {
			best = best[:topN]
		}
	}
	out := make([]Neighbor, len(best))
	for i, b := range best {
		out[i] = Neighbor{Key: m.keys[b.idx], Score: float32(b.score)}
	}
	return out
}

func (m *Model) wordVector(i int, dst []float32) {
	base := m.vecOff + 4*i*m.hdr.dim
	for j := range dst {
		dst[j] = m.float(base + 4*j)
	}
}

func (m *Model) float(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(m.data[off : off+4]))
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}
