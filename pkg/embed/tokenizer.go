package embed

import (
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	clsTokenID = 101
	sepTokenID = 102

	hashVocabSize   = 30000
	hashVocabOffset = 1000
)

// SimpleTokenizer maps words onto a fixed vocabulary range by hashing instead
// of a learned WordPiece vocabulary. The ids are stable across runs and
// platforms, which keeps embeddings deterministic.
type SimpleTokenizer struct {
	maxTokens int
}

func NewSimpleTokenizer(maxTokens int) *SimpleTokenizer {
	if maxTokens < 3 {
		maxTokens = 256
	}
	return &SimpleTokenizer{maxTokens: maxTokens}
}

// Tokenize returns input ids and the matching attention mask, both exactly
// maxTokens long and zero padded. Longer input is truncated so the [CLS] and
// [SEP] markers always fit.
func (t *SimpleTokenizer) Tokenize(text string) ([]int64, []int64) {
	words := splitWords(text)
	if limit := t.maxTokens - 2; len(words) > limit {
		words = words[:limit]
	}

	ids := make([]int64, t.maxTokens)
	mask := make([]int64, t.maxTokens)

	pos := 0
	ids[pos] = clsTokenID
	mask[pos] = 1
	pos++
	for _, word := range words {
		h := fnv.New32a()
		h.Write([]byte(word))
		ids[pos] = int64(h.Sum32()%hashVocabSize) + hashVocabOffset
		mask[pos] = 1
		pos++
	}
	ids[pos] = sepTokenID
	mask[pos] = 1

	return ids, mask
}

func (t *SimpleTokenizer) MaxTokens() int {
	return t.maxTokens
}

// splitWords lowercases text and splits on anything that is not a letter or
// digit.
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
