package embedding

// ngrams lists the character n-grams of "<word>" with minn..maxn runes,
// shortest first, in the order fastText-style models hash them.
func ngrams(word string, minn, maxn int) []string {
	ext := []rune("<" + word + ">")
	if maxn > len(ext) {
		maxn = len(ext)
	}
	var out []string
	for n := minn; n <= maxn; n++ {
		for i := 0; i+n <= len(ext); i++ {
			out = append(out, string(ext[i:i+n]))
		}
	}
	return out
}

// ngramHashes maps every n-gram of word to its bucket.
func ngramHashes(word string, minn, maxn, buckets int) []uint32 {
	grams := ngrams(word, minn, maxn)
	out := make([]uint32, len(grams))
	for i, g := range grams {
		out[i] = fnvHash(g) % uint32(buckets)
	}
	return out
}

// fnvHash is 32-bit FNV-1a over UTF-8 bytes with each byte sign-extended,
// matching the subword hashing of the training toolchain.
func fnvHash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(int32(int8(s[i])))
		h *= 16777619
	}
	return h
}
