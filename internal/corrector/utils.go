package corrector

// Levenshtein is the unit-cost insert/delete/substitute distance over runes.
func Levenshtein(a, b string) int {
	return levenshtein([]rune(a), []rune(b), -1)
}

// levenshtein returns limit+1 as soon as the distance is known to exceed
// limit. A negative limit disables the cut-off.
func levenshtein(ra, rb []rune, limit int) int {
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			x := prev[j] + 1
			if y := curr[j-1] + 1; y < x {
				x = y
			}
			if z := prev[j-1] + cost; z < x {
				x = z
			}
			curr[j] = x
			if x < rowMin {
				rowMin = x
			}
		}
		if limit >= 0 && rowMin > limit {
			return limit + 1
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// Nearest scans keys in order and returns the first entry with the
// minimum edit distance to token. ok is false when keys is empty.
func Nearest(keys []string, token string) (entry string, distance int, ok bool) {
	runes := make([][]rune, len(keys))
	for i, k := range keys {
		runes[i] = []rune(k)
	}
	i, d := nearest(runes, []rune(token))
	if i < 0 {
		return "", 0, false
	}
	return keys[i], d, true
}

func nearest(keys [][]rune, token []rune) (int, int) {
	best, bestDist := -1, 0
	for i, k := range keys {
		if best >= 0 {
			// the length gap alone is a lower bound on the distance
			if abs(len(k)-len(token)) >= bestDist {
				continue
			}
			if d := levenshtein(token, k, bestDist-1); d < bestDist {
				best, bestDist = i, d
			}
		} else {
			best, bestDist = i, levenshtein(token, k, -1)
		}
		if bestDist == 0 {
			break
		}
	}
	return best, bestDist
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
