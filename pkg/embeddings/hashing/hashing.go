// Package hashing implements an offline pkg/embeddings Embedder using signed
// feature hashing over word unigrams and bigrams. It needs no model server,
// which makes it the default for demos, seeding and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/papercomputeco/insurag/pkg/embeddings"
	"github.com/papercomputeco/insurag/pkg/vector"
)

// DefaultDimensions is the vector length when none is configured.
const DefaultDimensions = 256

const bigramWeight = 0.5

var tokenRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// labelRe matches the "Label: " prefix of each segment of an embedding text
// such as "Name: John Doe | City: Lusaka".
var labelRe = regexp.MustCompile(`(^|\|)\s*\p{L}+(?: \p{L}+){0,3}:\s`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "which": {}, "with": {}, "what": {}, "who": {}, "how": {}, "do": {}, "does": {},
	"any": {}, "all": {}, "me": {}, "my": {}, "our": {}, "we": {}, "you": {}, "your": {},
	"i": {}, "can": {}, "find": {}, "show": {}, "list": {}, "give": {}, "tell": {}, "about": {},
	"there": {}, "please": {},
}

// Embedder is a deterministic feature-hashing embedder. The same text always
// yields the same unit-length vector.
type Embedder struct {
	dimensions int
}

// NewEmbedder returns a hashing embedder producing vectors of the given
// length. Non-positive values select DefaultDimensions.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed hashes the text's terms into a fixed-size vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no indexable terms in input", vector.ErrEmbedding)
	}

	counts := make(map[string]float64, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok] += bigramWeight
		}
	}

	vec := make([]float32, e.dimensions)
	for term, tf := range counts {
		idx, sign := e.bucket(term)
		vec[idx] += float32(sign * (1 + math.Log(tf+1)))
	}

	return vector.Normalize(vec), nil
}

func (e *Embedder) bucket(term string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimensions)), sign
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

// Tokenize lowercases text and splits it into word and number tokens. Field
// labels, common English stopwords and request verbs are dropped, and plurals
// and possessives are folded so "engineers" matches "Engineer".
func Tokenize(text string) []string {
	text = labelRe.ReplaceAllString(text, "$1 ")
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, skip := stopwords[t]; skip {
			continue
		}
		tokens = append(tokens, fold(t))
	}
	return tokens
}

// fold strips possessives and regular plural endings.
func fold(t string) string {
	for _, suffix := range []string{"'s", "’s"} {
		if strings.HasSuffix(t, suffix) {
			return strings.TrimSuffix(t, suffix)
		}
	}
	switch {
	case len(t) > 4 && strings.HasSuffix(t, "ies"):
		return t[:len(t)-3] + "y"
	case len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss"):
		return t[:len(t)-1]
	}
	return t
}

var _ embeddings.Embedder = (*Embedder)(nil)
