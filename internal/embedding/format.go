package embedding

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Artifact layout, little endian:
//
//	magic[8] version dim count buckets minn maxn   (uint32 each after magic)
//	count x (uint32 len, key bytes)
//	zero padding to a multiple of 4
//	count x dim float32   word vectors
//	buckets x dim float32 n-gram bucket vectors
const (
	magic      = "JAMOVEC1"
	version    = 1
	headerSize = len(magic) + 6*4
)

var (
	ErrBadMagic  = errors.New("embedding: not a jamo vector artifact")
	ErrTruncated = errors.New("embedding: truncated artifact")
)

// Artifact is the in-memory form of a model before it is written.
type Artifact struct {
	Keys    []string
	Vectors [][]float32 // one per key; may be empty when Dim is 0
	Ngrams  [][]float32 // hashed subword buckets; optional
	Dim     int
	MinN    int
	MaxN    int
}

func (a *Artifact) validate() error {
	if a.Dim < 0 {
		return fmt.Errorf("embedding: negative dimension %d", a.Dim)
	}
	if a.Dim > 0 && len(a.Vectors) != len(a.Keys) {
		return fmt.Errorf("embedding: %d keys but %d vectors", len(a.Keys), len(a.Vectors))
	}
	for i, v := range a.Vectors {
		if len(v) != a.Dim {
			return fmt.Errorf("embedding: vector %d (%q) has dimension %d, want %d", i, a.Keys[i], len(v), a.Dim)
		}
	}
	for i, v := range a.Ngrams {
		if len(v) != a.Dim {
			return fmt.Errorf("embedding: ngram bucket %d has dimension %d, want %d", i, len(v), a.Dim)
		}
	}
	if len(a.Ngrams) > 0 && (a.MinN <= 0 || a.MaxN < a.MinN) {
		return fmt.Errorf("embedding: invalid ngram range %d..%d", a.MinN, a.MaxN)
	}
	seen := make(map[string]struct{}, len(a.Keys))
	for _, k := range a.Keys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("embedding: duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Write serialises a to w.
func Write(w io.Writer, a Artifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	var u32 [4]byte
	putU32 := func(v int) error {
		binary.LittleEndian.PutUint32(u32[:], uint32(v))
		_, err := bw.Write(u32[:])
		return err
	}
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	vecs := a.Vectors
	if a.Dim == 0 {
		vecs = nil
	}
	for _, v := range []int{version, a.Dim, len(a.Keys), len(a.Ngrams), a.MinN, a.MaxN} {
		if err := putU32(v); err != nil {
			return err
		}
	}
	written := headerSize
	for _, k := range a.Keys {
		if err := putU32(len(k)); err != nil {
			return err
		}
		if _, err := bw.WriteString(k); err != nil {
			return err
		}
		written += 4 + len(k)
	}
	if pad := (4 - written%4) % 4; pad > 0 {
		if _, err := bw.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	for _, group := range [][][]float32{vecs, a.Ngrams} {
		for _, v := range group {
			for _, f := range v {
				binary.LittleEndian.PutUint32(u32[:], math.Float32bits(f))
				if _, err := bw.Write(u32[:]); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// WriteFile writes the artifact atomically through a temporary file.
func WriteFile(path string, a Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if err := Write(f, a); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

type header struct {
	dim, count, buckets, minn, maxn int
}

func parseHeader(data []byte) (header, error) {
	var h header
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return h, ErrBadMagic
	}
	if len(data) < headerSize {
		return h, ErrTruncated
	}
	field := func(i int) int {
		off := len(magic) + 4*i
		return int(binary.LittleEndian.Uint32(data[off : off+4]))
	}
	if v := field(0); v != version {
		return h, fmt.Errorf("embedding: unsupported artifact version %d", v)
	}
	h = header{dim: field(1), count: field(2), buckets: field(3), minn: field(4), maxn: field(5)}
	if h.buckets > 0 && (h.minn <= 0 || h.maxn < h.minn) {
		return h, fmt.Errorf("embedding: invalid ngram range %d..%d", h.minn, h.maxn)
	}
	return h, nil
}
