package crawler

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// Simhash computes a 64-bit SimHash over the lower-cased words of text,
// each word weighted by its frequency. Near-duplicate texts yield
// signatures with a small Hamming distance.
func Simhash(text string) uint64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	if len(words) == 0 {
		return 0
	}

	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}

	var vector [64]int

	for w, weight := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()

		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i] += weight
			} else {
				vector[i] -= weight
			}
		}
	}

	var sig uint64

	for i, v := range vector {
		if v > 0 {
			sig |= 1 << uint(i)
		}
	}

	return sig
}

// SimhashHex renders Simhash(text) as 16 lowercase hex characters.
func SimhashHex(text string) string {
	return FormatSimhash(Simhash(text))
}

// FormatSimhash renders a signature as 16 lowercase hex characters.
func FormatSimhash(sig uint64) string {
	return fmt.Sprintf("%016x", sig)
}

// HammingDistance counts differing bits between two signatures.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
