package embed

import (
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder derives vectors from word, stem, and character trigram
// features, no model files or native runtime required. Texts sharing words or
// subwords land near each other in cosine space, which is enough for tests
// and for hosts without onnxruntime. Vectors are deterministic and
// L2-normalized.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	features := hashFeatures(text)
	if len(features) == 0 {
		// Blank input still embeds to a valid unit vector.
		vec[0] = 1
		return vec, nil
	}

	for _, feature := range features {
		h := fnv.New64a()
		h.Write([]byte(feature))
		seed := float64(h.Sum64() % (1 << 20))
		for i := range vec {
			vec[i] += float32(math.Sin(seed * float64(i+1)))
		}
	}

	normalizeL2(vec)
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (e *HashEmbedder) Dimensions() int {
	return e.dims
}

func (e *HashEmbedder) Close() error {
	return nil
}

// hashFeatures expands text into one feature per word, two per stem, and one
// per padded character trigram, so inflected forms of a word keep most of
// their features in common.
func hashFeatures(text string) []string {
	words := splitWords(text)
	features := make([]string, 0, len(words)*6)
	for _, word := range words {
		features = append(features, "w:"+word)
		stem := stemWord(word)
		features = append(features, "s:"+stem, "s:"+stem)
		padded := []rune("^" + word + "$")
		for i := 0; i+3 <= len(padded); i++ {
			features = append(features, "t:"+string(padded[i:i+3]))
		}
	}
	return features
}

// stemWord strips the most common English suffixes from words long enough to
// carry them. Crude, but it pulls plural and inflected forms together.
func stemWord(word string) string {
	for _, suffix := range []string{"ing", "es", "ed", "s"} {
		if len(word) > len(suffix)+2 && strings.HasSuffix(word, suffix) {
			return strings.TrimSuffix(word, suffix)
		}
	}
	return word
}
