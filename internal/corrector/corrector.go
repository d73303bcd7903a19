package corrector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"ingredient-corrector/internal/jamo"
	"ingredient-corrector/pkg/options"
)

// Cache stores finished corrections keyed by raw token.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type fingerprinter interface {
	Fingerprint() uint64
}

// Corrector maps noisy OCR tokens onto the vocabulary of an Index. It
// holds no mutable state after construction and is safe for concurrent
// use.
type Corrector struct {
	index  Index
	policy Policy
	log    logrus.FieldLogger
	cache  Cache
	keys   []string
	runes  [][]rune
}

func New(index Index, log logrus.FieldLogger, opts ...options.Options) (*Corrector, error) {
	if index == nil {
		return nil, errors.New("corrector: nil index")
	}
	policy, err := NewPolicy(opts...)
	if err != nil {
		return nil, fmt.Errorf("corrector: %w", err)
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	c := &Corrector{index: index, policy: policy, log: log, keys: index.Keys()}
	c.runes = make([][]rune, len(c.keys))
	for i, k := range c.keys {
		c.runes[i] = []rune(k)
	}
	if len(c.keys) == 0 {
		log.Warn("vocabulary is empty; every token will be returned unchanged")
	}
	return c, nil
}

// UseCache makes CorrectBatch consult cache before running the pipeline.
// It must be called before the corrector is shared.
func (c *Corrector) UseCache(cache Cache) { c.cache = cache }

// Policy returns the active acceptance policy.
func (c *Corrector) Policy() Policy { return c.policy }

// VocabularySize is the number of entries in the index.
func (c *Corrector) VocabularySize() int { return len(c.keys) }

// Namespace identifies the index and policy, for keying shared caches.
func (c *Corrector) Namespace() string {
	var idx uint64
	if f, ok := c.index.(fingerprinter); ok {
		idx = f.Fingerprint()
	} else {
		idx = xxhash.Sum64String(strings.Join(c.keys, "\n"))
	}
	return fmt.Sprintf("%016x-%016x", idx, xxhash.Sum64String(c.policy.Fingerprint()))
}

// Correct runs the pipeline on a single token.
func (c *Corrector) Correct(token string) Correction {
	res := Correction{Original: token, Corrected: token, Stage: StageUnchanged}
	raw := token
	if c.policy.Normalize {
		raw = norm.NFC.String(token)
	}
	enc := jamo.Encode(raw)
	if strings.TrimSpace(enc) == "" {
		res.Corrected = enc
		return res
	}

	m, ok := Predict(c.index, enc, c.policy.SimilarityThreshold, c.policy.TopN)
	res.Candidate, res.Score = m.Key, m.Score
	if ok {
		stage := StageSimilarity
		if m.Exact {
			stage = StageExact
		}
		return c.finish(res, m.Key, stage)
	}

	if c.policy.EditFallback {
		if i, d := nearest(c.runes, []rune(enc)); i >= 0 {
			res.Distance = d
			if c.policy.Accept(d, jamo.UnitLen(enc)) {
				res.Score = 0
				return c.finish(res, c.keys[i], StageEditDistance)
			}
			if res.Candidate == "" {
				res.Candidate = c.keys[i]
			}
		}
	}
	return c.finish(res, enc, StageUnchanged)
}

func (c *Corrector) finish(res Correction, key string, stage Stage) Correction {
	word, err := jamo.Decode(key)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"token": res.Original,
			"entry": key,
			"stage": stage,
		}).Error("cannot decode vocabulary entry")
		res.Corrected = res.Original
		res.Stage = StageFailed
		res.Err = err
		return res
	}
	if stage != StageUnchanged {
		res.Candidate = key
	}
	res.Corrected = word
	res.Stage = stage
	c.log.WithFields(logrus.Fields{
		"token":     res.Original,
		"corrected": res.Corrected,
		"stage":     res.Stage,
		"score":     res.Score,
		"distance":  res.Distance,
	}).Debug("corrected token")
	return res
}

// CorrectBatch corrects tokens concurrently and returns the results in
// input order. Failures stay per token; only a cancelled ctx aborts the
// batch.
func (c *Corrector) CorrectBatch(ctx context.Context, tokens []string) ([]Correction, error) {
	out := make([]Correction, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}
	workers := min(c.policy.WorkerCount(), len(tokens))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = c.correctOne(ctx, tokens[i])
			}
		}()
	}

	var err error
dispatch:
	for i := range tokens {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Corrector) correctOne(ctx context.Context, token string) (res Correction) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("token", token).Errorf("correction panicked: %v", r)
			res = Correction{Original: token, Corrected: token, Stage: StageFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if c.cache == nil || token == "" {
		return c.Correct(token)
	}
	if v, ok, err := c.cache.Get(ctx, token); err != nil {
		c.log.WithError(err).Warn("cache lookup failed")
	} else if ok {
		return Correction{Original: token, Corrected: v, Stage: StageCached}
	}
	res = c.Correct(token)
	if res.Stage != StageFailed {
		if err := c.cache.Set(ctx, token, res.Corrected); err != nil {
			c.log.WithError(err).Warn("cache store failed")
		}
	}
	return res
}

// Strings flattens corrections to their corrected text.
func Strings(cs []Correction) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Corrected
	}
	return out
}
