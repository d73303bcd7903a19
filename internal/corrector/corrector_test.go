package corrector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingredient-corrector/internal/embedding"
	"ingredient-corrector/internal/jamo"
	"ingredient-corrector/pkg/options"
)

// fakeIndex answers similarity queries from a fixed table.
type fakeIndex struct {
	keys      []string
	set       map[string]bool
	neighbors map[string][]embedding.Neighbor
}

func newFakeIndex(words ...string) *fakeIndex {
	f := &fakeIndex{set: map[string]bool{}, neighbors: map[string][]embedding.Neighbor{}}
	for _, w := range words {
		k := jamo.Encode(w)
		f.keys = append(f.keys, k)
		f.set[k] = true
	}
	return f
}

// near registers the neighbour returned for the raw token.
func (f *fakeIndex) near(token, word string, score float32) *fakeIndex {
	enc := jamo.Encode(token)
	f.neighbors[enc] = append(f.neighbors[enc], embedding.Neighbor{Key: jamo.Encode(word), Score: score})
	return f
}

func (f *fakeIndex) Contains(key string) bool { return f.set[key] }
func (f *fakeIndex) Keys() []string           { return f.keys }
func (f *fakeIndex) MostSimilar(key string, topN int) []embedding.Neighbor {
	ns := f.neighbors[key]
	if len(ns) > topN {
		ns = ns[:topN]
	}
	return ns
}

func newCorrector(t *testing.T, idx Index, opts ...options.Options) *Corrector {
	t.Helper()
	log, _ := test.NewNullLogger()
	c, err := New(idx, log, opts...)
	require.NoError(t, err)
	return c
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(newFakeIndex("물"), nil, options.WithSimilarityThreshold(1.5))
	assert.ErrorContains(t, err, "threshold")

	_, err = New(newFakeIndex("물"), nil, options.WithTopN(0))
	assert.ErrorContains(t, err, "topN")

	_, err = New(newFakeIndex("물"), nil, options.WithMaxDistances(-1, 5))
	assert.ErrorContains(t, err, "distance")
}

func TestExactMatch(t *testing.T) {
	c := newCorrector(t, newFakeIndex("water", "sugar"))
	got := c.Correct("water")
	assert.Equal(t, "water", got.Corrected)
	assert.Equal(t, StageExact, got.Stage)
	assert.Equal(t, float32(1), got.Score)
}

func TestExactMatchIgnoresThresholds(t *testing.T) {
	idx := newFakeIndex("정제수", "글리세린")
	for _, opts := range [][]options.Options{
		{options.WithSimilarityThreshold(1), options.WithoutFallback()},
		{options.WithSimilarityThreshold(-1)},
		{options.SimilarityOnly()},
		{options.WithMaxDistances(0, 0)},
	} {
		c := newCorrector(t, idx, opts...)
		got := c.Correct("글리세린")
		assert.Equal(t, "글리세린", got.Corrected)
		assert.Equal(t, StageExact, got.Stage)
	}
}

func TestSimilarityStage(t *testing.T) {
	idx := newFakeIndex("글리세린", "정제수").near("글리세란", "글리세린", 0.97)

	got := newCorrector(t, idx).Correct("글리세란")
	assert.Equal(t, "글리세린", got.Corrected)
	assert.Equal(t, StageSimilarity, got.Stage)
	assert.Equal(t, jamo.Encode("글리세린"), got.Candidate)
	assert.InDelta(t, 0.97, got.Score, 1e-6)
}

func TestSimilarityBelowThresholdFallsBack(t *testing.T) {
	idx := newFakeIndex("글리세린", "정제수").near("글리세란", "정제수", 0.7)

	// 0.65 accepts the neighbour even though it is the wrong entry.
	loose := newCorrector(t, idx, options.SimilarityOnly()).Correct("글리세란")
	assert.Equal(t, "정제수", loose.Corrected)
	assert.Equal(t, StageSimilarity, loose.Stage)

	// 0.95 rejects it; 12 units with one edit is within the long bound.
	strict := newCorrector(t, idx, options.Combined()).Correct("글리세란")
	assert.Equal(t, "글리세린", strict.Corrected)
	assert.Equal(t, StageEditDistance, strict.Stage)
	assert.Equal(t, 1, strict.Distance)

	noFallback := newCorrector(t, idx, options.WithoutFallback()).Correct("글리세란")
	assert.Equal(t, "글리세란", noFallback.Corrected)
	assert.Equal(t, StageUnchanged, noFallback.Stage)
}

func TestThresholdMonotonicity(t *testing.T) {
	idx := newFakeIndex("a", "b", "c", "d")
	scores := []float32{-0.5, 0, 0.4, 0.65, 0.8, 0.95, 0.99}
	for i, s := range scores {
		tok := string(rune('p' + i))
		idx.neighbors[tok] = []embedding.Neighbor{{Key: "a", Score: s}}
	}
	accepted := func(threshold float32) map[string]bool {
		out := map[string]bool{}
		for tok := range idx.neighbors {
			if _, ok := Predict(idx, tok, threshold, 1); ok {
				out[tok] = true
			}
		}
		return out
	}
	thresholds := []float32{-1, 0, 0.5, 0.65, 0.9, 0.95, 1}
	for i := 1; i < len(thresholds); i++ {
		low, high := accepted(thresholds[i-1]), accepted(thresholds[i])
		for tok := range high {
			assert.True(t, low[tok], "token %s accepted at %v but not at %v", tok, thresholds[i], thresholds[i-1])
		}
		assert.LessOrEqual(t, len(high), len(low))
	}
}

func TestPredictNoNeighbors(t *testing.T) {
	m, ok := Predict(newFakeIndex(), "ㅁㅜㄹ", 0.5, 1)
	assert.False(t, ok)
	assert.Empty(t, m.Key)

	m, ok = Predict(newFakeIndex("물"), "ㅁㅜㄹ", 0.5, 0)
	assert.True(t, ok)
	assert.True(t, m.Exact)
}

func TestLengthAdaptiveFallback(t *testing.T) {
	c := newCorrector(t, newFakeIndex("설탕AB", "병풀추출물", "설탕"))

	// 8 units, two edits: rejected.
	short := c.Correct("설톤AB")
	require.Equal(t, 8, jamo.UnitLen(jamo.Encode("설톤AB")))
	assert.Equal(t, 2, short.Distance)
	assert.Equal(t, StageUnchanged, short.Stage)
	assert.Equal(t, "설톤AB", short.Corrected)

	// 6 units, one edit: accepted.
	one := c.Correct("설탄")
	assert.Equal(t, "설탕", one.Corrected)
	assert.Equal(t, StageEditDistance, one.Stage)

	// 15 units, four edits: accepted.
	long := c.Correct("빙폴추츌뭄")
	assert.Equal(t, 4, long.Distance)
	assert.Equal(t, "병풀추출물", long.Corrected)
	assert.Equal(t, StageEditDistance, long.Stage)
}

func TestPolicyAccept(t *testing.T) {
	p, err := NewPolicy()
	require.NoError(t, err)
	tests := []struct {
		distance, length int
		want             bool
	}{
		{2, 8, false},
		{1, 8, true},
		{1, 10, true},
		{2, 10, false},
		{4, 15, true},
		{5, 11, true},
		{6, 11, false},
		{0, 0, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Accept(tt.distance, tt.length), "distance=%d length=%d", tt.distance, tt.length)
	}
}

func TestEmptyAndBlankTokens(t *testing.T) {
	c := newCorrector(t, newFakeIndex("ㄱ", "물"))
	got := c.Correct("")
	assert.Equal(t, "", got.Corrected)
	assert.Equal(t, StageUnchanged, got.Stage)

	got = c.Correct("   ")
	assert.Equal(t, " ", got.Corrected)
	assert.Equal(t, StageUnchanged, got.Stage)
}

func TestPassThroughTokens(t *testing.T) {
	c := newCorrector(t, newFakeIndex("정제수", "글리세린"))
	for _, tok := range []string{"...", "1,2", "CI 77891", "(주)"} {
		got := c.Correct(tok)
		assert.Equal(t, tok, got.Corrected)
		assert.Equal(t, StageUnchanged, got.Stage)
	}
}

func TestEmptyVocabulary(t *testing.T) {
	log, hook := test.NewNullLogger()
	c, err := New(newFakeIndex(), log)
	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	got := c.Correct("글리세란")
	assert.Equal(t, "글리세란", got.Corrected)
	assert.Equal(t, StageUnchanged, got.Stage)
}

func TestNormalization(t *testing.T) {
	decomposed := "\u1106\u116e\u11af" // 물 as conjoining jamo
	idx := newFakeIndex("물")

	got := newCorrector(t, idx).Correct(decomposed)
	assert.Equal(t, "물", got.Corrected)
	assert.Equal(t, StageExact, got.Stage)

	raw := newCorrector(t, idx, options.WithNormalization(false)).Correct(decomposed)
	assert.Equal(t, decomposed, raw.Corrected)
	assert.Equal(t, StageUnchanged, raw.Stage)
}

func TestDecodeFailureIsContained(t *testing.T) {
	idx := newFakeIndex("정제수")
	idx.neighbors[jamo.Encode("가")] = []embedding.Neighbor{{Key: "ㄱㅏ-ㄴ", Score: 0.99}}

	log, hook := test.NewNullLogger()
	c, err := New(idx, log)
	require.NoError(t, err)

	got := c.Correct("가")
	assert.Equal(t, StageFailed, got.Stage)
	assert.Equal(t, "가", got.Corrected)
	var de *jamo.DecodeError
	assert.True(t, errors.As(got.Err, &de))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	batch, err := c.CorrectBatch(context.Background(), []string{"가", "정제수"})
	require.NoError(t, err)
	assert.Equal(t, []string{"가", "정제수"}, Strings(batch))
	assert.Equal(t, StageExact, batch[1].Stage)
}

func TestBatchKeepsOrder(t *testing.T) {
	c := newCorrector(t, newFakeIndex("정확한단어", "설탕"), options.WithWorkers(3))
	in := []string{"성분A_ocr_noise", "정확한단어", ""}
	got, err := c.CorrectBatch(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"성분A_ocr_noise", "정확한단어", ""}, Strings(got))
	for i := range in {
		assert.Equal(t, in[i], got[i].Original)
	}

	var many []string
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			many = append(many, "설탄")
		} else {
			many = append(many, "정확한단어")
		}
	}
	got, err = c.CorrectBatch(context.Background(), many)
	require.NoError(t, err)
	for i, r := range got {
		if i%2 == 0 {
			assert.Equal(t, "설탕", r.Corrected)
		} else {
			assert.Equal(t, "정확한단어", r.Corrected)
		}
	}

	empty, err := c.CorrectBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBatchCancelled(t *testing.T) {
	c := newCorrector(t, newFakeIndex("물"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CorrectBatch(ctx, []string{"물", "뭄"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeterminismAndIdempotence(t *testing.T) {
	idx := newFakeIndex("글리세린", "병풀추출물", "정제수").near("글리세란", "글리세린", 0.96)
	c := newCorrector(t, idx)
	for _, tok := range []string{"글리세란", "빙폴추츌뭄", "정제수", "unknown"} {
		first := c.Correct(tok)
		assert.Equal(t, first, c.Correct(tok))
		if first.Stage != StageUnchanged {
			again := c.Correct(first.Corrected)
			assert.Equal(t, first.Corrected, again.Corrected)
			assert.Equal(t, StageExact, again.Stage)
		}
	}
}

type mapCache struct {
	mu   sync.Mutex
	m    map[string]string
	sets int
	fail bool
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", false, errors.New("cache down")
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.m[key] = value
	c.sets++
	return nil
}

func TestBatchUsesCache(t *testing.T) {
	cache := &mapCache{m: map[string]string{}}
	c := newCorrector(t, newFakeIndex("설탕"))
	c.UseCache(cache)

	first, err := c.CorrectBatch(context.Background(), []string{"설탄"})
	require.NoError(t, err)
	assert.Equal(t, StageEditDistance, first[0].Stage)
	assert.Equal(t, 1, cache.sets)

	second, err := c.CorrectBatch(context.Background(), []string{"설탄"})
	require.NoError(t, err)
	assert.Equal(t, StageCached, second[0].Stage)
	assert.Equal(t, "설탕", second[0].Corrected)

	cache.fail = true
	third, err := c.CorrectBatch(context.Background(), []string{"설탄"})
	require.NoError(t, err)
	assert.Equal(t, "설탕", third[0].Corrected)
	assert.Equal(t, StageEditDistance, third[0].Stage)
}

func TestNamespaceTracksPolicy(t *testing.T) {
	idx := newFakeIndex("물", "설탕")
	a := newCorrector(t, idx).Namespace()
	assert.Equal(t, a, newCorrector(t, idx, options.WithWorkers(8)).Namespace())
	assert.NotEqual(t, a, newCorrector(t, idx, options.SimilarityOnly()).Namespace())
	assert.NotEqual(t, a, newCorrector(t, newFakeIndex("물")).Namespace())
}
