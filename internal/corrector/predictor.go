package corrector

import "ingredient-corrector/internal/embedding"

// Index is the embedding vocabulary the pipeline queries. All keys are
// jamo-encoded.
type Index interface {
	Contains(key string) bool
	MostSimilar(key string, topN int) []embedding.Neighbor
	Keys() []string
}

// Match is a predictor outcome. Key and Score describe the best neighbour
// even when it fell below the threshold.
type Match struct {
	Key   string
	Score float32
	Exact bool
}

// Predict short-circuits on an exact vocabulary hit and otherwise accepts
// the nearest neighbour whose similarity reaches threshold.
func Predict(idx Index, token string, threshold float32, topN int) (Match, bool) {
	if idx.Contains(token) {
		return Match{Key: token, Score: 1, Exact: true}, true
	}
	if topN < 1 {
		topN = 1
	}
	neighbors := idx.MostSimilar(token, topN)
	if len(neighbors) == 0 {
		return Match{}, false
	}
	top := neighbors[0]
	m := Match{Key: top.Key, Score: top.Score}
	return m, top.Score >= threshold
}
