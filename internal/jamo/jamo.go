// Package jamo converts Korean text to and from its sub-syllabic form.
//
// Every precomposed Hangul syllable is written as exactly three units
// (leading consonant, vowel, trailing consonant or NoFinal) using Hangul
// Compatibility Jamo, the alphabet the ingredient embedding vocabulary is
// built over.
package jamo

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoFinal marks a syllable without a trailing consonant.
const NoFinal = '-'

const (
	syllableBase = 0xAC00
	syllableLast = 0xD7A3
	jamoFirst    = 0x3131 // ㄱ
	jamoLast     = 0x3163 // ㅣ

	jungCount = 21
	jongCount = 28
)

var (
	choseong  = []rune("ㄱㄲㄴㄷㄸㄹㅁㅂㅃㅅㅆㅇㅈㅉㅊㅋㅌㅍㅎ")
	jungseong = []rune("ㅏㅐㅑㅒㅓㅔㅕㅖㅗㅘㅙㅚㅛㅜㅝㅞㅟㅠㅡㅢㅣ")
	// index 0 is "no trailing consonant"
	jongseong = []rune(" ㄱㄲㄳㄴㄵㄶㄷㄹㄺㄻㄼㄽㄾㄿㅀㅁㅂㅄㅅㅆㅇㅈㅊㅋㅌㅍㅎ")

	choIndex  = indexOf(choseong)
	jungIndex = indexOf(jungseong)
	jongIndex = indexOf(jongseong)
)

func indexOf(rs []rune) map[rune]int {
	m := make(map[rune]int, len(rs))
	for i, r := range rs {
		if r != ' ' {
			m[r] = i
		}
	}
	return m
}

// DecodeError reports a jamo string that cannot be recomposed.
type DecodeError struct {
	Input  string
	Offset int // rune offset of the offending triple
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jamo: decode %q at %d: %s", e.Input, e.Offset, e.Reason)
}

// IsSyllable reports whether r is a precomposed Hangul syllable.
func IsSyllable(r rune) bool { return r >= syllableBase && r <= syllableLast }

// IsJamo reports whether r is a modern Hangul Compatibility Jamo.
func IsJamo(r rune) bool { return r >= jamoFirst && r <= jamoLast }

// IsVowel reports whether r is a compatibility jamo vowel.
func IsVowel(r rune) bool {
	_, ok := jungIndex[r]
	return ok
}

// Decompose splits a syllable into its three units. The trailing unit is
// NoFinal when the syllable has no final consonant. ok is false for
// anything that is not a precomposed syllable.
func Decompose(r rune) (lead, vowel, tail rune, ok bool) {
	if !IsSyllable(r) {
		return 0, 0, 0, false
	}
	i := int(r - syllableBase)
	cho := i / (jungCount * jongCount)
	jung := (i % (jungCount * jongCount)) / jongCount
	jong := i % jongCount
	tail = NoFinal
	if jong > 0 {
		tail = jongseong[jong]
	}
	return choseong[cho], jungseong[jung], tail, true
}

// Compose builds a syllable from its units. tail may be NoFinal.
func Compose(lead, vowel, tail rune) (rune, bool) {
	cho, ok := choIndex[lead]
	if !ok {
		return 0, false
	}
	jung, ok := jungIndex[vowel]
	if !ok {
		return 0, false
	}
	jong := 0
	if tail != NoFinal {
		if jong, ok = jongIndex[tail]; !ok {
			return 0, false
		}
	}
	return rune(syllableBase + (cho*jungCount+jung)*jongCount + jong), true
}

// Encode rewrites every syllable of token as a jamo triple and collapses
// whitespace runs to a single space.
func Encode(token string) string {
	var b strings.Builder
	b.Grow(len(token) * 3)
	space := false
	for _, r := range token {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		switch {
		case IsSyllable(r):
			lead, vowel, tail, _ := Decompose(r)
			b.WriteRune(lead)
			b.WriteRune(vowel)
			b.WriteRune(tail)
		case IsJamo(r) && IsVowel(r):
			b.WriteRune(NoFinal)
			b.WriteRune(r)
			b.WriteRune(NoFinal)
		case IsJamo(r):
			b.WriteRune(r)
			b.WriteRune(NoFinal)
			b.WriteRune(NoFinal)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Decode recomposes a string produced by Encode.
func Decode(s string) (string, error) {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); {
		r := rs[i]
		if r == NoFinal && i+2 < len(rs) && IsVowel(rs[i+1]) && rs[i+2] == NoFinal {
			b.WriteRune(rs[i+1])
			i += 3
			continue
		}
		if !IsJamo(r) {
			b.WriteRune(r)
			i++
			continue
		}
		if len(rs)-i < 3 {
			return "", &DecodeError{Input: s, Offset: i, Reason: fmt.Sprintf("truncated triple (%d of 3 units)", len(rs)-i)}
		}
		lead, vowel, tail := rs[i], rs[i+1], rs[i+2]
		if vowel == NoFinal && tail == NoFinal && !IsVowel(lead) {
			b.WriteRune(lead)
			i += 3
			continue
		}
		syl, ok := Compose(lead, vowel, tail)
		if !ok {
			return "", &DecodeError{Input: s, Offset: i, Reason: fmt.Sprintf("invalid triple %q", string(rs[i:i+3]))}
		}
		b.WriteRune(syl)
		i += 3
	}
	return b.String(), nil
}

// UnitLen returns the number of units in an encoded string.
func UnitLen(s string) int { return utf8.RuneCountInString(s) }
