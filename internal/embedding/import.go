package embedding

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ingredient-corrector/internal/jamo"
)

const maxLine = 16 << 20

// ReadVec parses word vectors in the text format written by fastText and
// word2vec: an optional "count dim" header followed by one "key v1 .. vD"
// line per entry. Keys cannot contain spaces in this format.
func ReadVec(r io.Reader) (keys []string, vectors [][]float32, dim int, err error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && isHeader(fields) {
			continue
		}
		vec, err := parseFloats(fields[1:])
		if err != nil {
			return nil, nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, nil, 0, fmt.Errorf("line %d: dimension %d, want %d", line, len(vec), dim)
		}
		keys = append(keys, fields[0])
		vectors = append(vectors, vec)
	}
	if err := s.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("read vectors: %w", err)
	}
	return keys, vectors, dim, nil
}

// ReadNgrams parses one bucket vector per line, with an optional
// "buckets dim" header.
func ReadNgrams(r io.Reader, dim int) ([][]float32, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLine)
	var out [][]float32
	line := 0
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && isHeader(fields) && len(fields) != dim {
			continue
		}
		vec, err := parseFloats(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("line %d: dimension %d, want %d", line, len(vec), dim)
		}
		out = append(out, vec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read ngrams: %w", err)
	}
	return out, nil
}

// ReadVocabulary reads one ingredient name per line and returns their
// jamo encodings in file order, without blanks or duplicates.
func ReadVocabulary(r io.Reader) ([]string, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLine)
	seen := make(map[string]struct{})
	var keys []string
	for s.Scan() {
		name := strings.TrimSpace(s.Text())
		if name == "" {
			continue
		}
		k := jamo.Encode(name)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return keys, nil
}

func isHeader(fields []string) bool {
	if len(fields) != 2 {
		return false
	}
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("parse component %d: %w", i, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// Sources names the text inputs of an artifact. Any of them may be nil.
type Sources struct {
	Vectors    io.Reader
	Ngrams     io.Reader
	Vocabulary io.Reader
	MinN, MaxN int
}

// Build assembles an artifact from text sources. With a vocabulary the
// index is restricted to its entries in file order, and entries that have
// no vector get a zero one; they still match exactly and by edit distance.
// Without vectors the artifact has dimension 0.
func Build(src Sources) (Artifact, error) {
	a := Artifact{MinN: src.MinN, MaxN: src.MaxN}
	if src.Vectors != nil {
		keys, vecs, dim, err := ReadVec(src.Vectors)
		if err != nil {
			return Artifact{}, err
		}
		a.Keys, a.Vectors, a.Dim = keys, vecs, dim
	}
	if src.Vocabulary != nil {
		vocab, err := ReadVocabulary(src.Vocabulary)
		if err != nil {
			return Artifact{}, err
		}
		byKey := make(map[string][]float32, len(a.Keys))
		for i, k := range a.Keys {
			byKey[k] = a.Vectors[i]
		}
		a.Keys = vocab
		a.Vectors = nil
		if a.Dim > 0 {
			a.Vectors = make([][]float32, len(vocab))
			for i, k := range vocab {
				if v, ok := byKey[k]; ok {
					a.Vectors[i] = v
				} else {
					a.Vectors[i] = make([]float32, a.Dim)
				}
			}
		}
	}
	if src.Ngrams != nil {
		if a.Dim == 0 {
			return Artifact{}, fmt.Errorf("ngram buckets need word vectors")
		}
		ng, err := ReadNgrams(src.Ngrams, a.Dim)
		if err != nil {
			return Artifact{}, err
		}
		a.Ngrams = ng
	}
	return a, a.validate()
}
