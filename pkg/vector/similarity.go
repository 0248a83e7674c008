package vector

import (
	"math"
	"sort"

	"github.com/papercomputeco/insurag/pkg/entity"
)

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// Vectors of different length or zero magnitude score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return Clamp(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// FromCosineDistance converts a cosine distance (1 - cosine) into a score.
func FromCosineDistance(d float64) float32 {
	return Clamp(1 - d)
}

// Clamp bounds a similarity to [0, 1].
func Clamp(s float64) float32 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return float32(s)
	}
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var n float64
	for _, f := range v {
		n += float64(f) * float64(f)
	}
	if n == 0 {
		return v
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

// SortResults orders results by descending score, then collection and id
// ascending, and truncates to topK when topK > 0.
func SortResults(results []QueryResult, topK int) []QueryResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Collection != b.Collection {
			return a.Collection < b.Collection
		}
		return a.ID < b.ID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// ResolveCollections expands an empty collection list to every collection.
func ResolveCollections(collections []entity.Collection) []entity.Collection {
	if len(collections) == 0 {
		return entity.Collections()
	}
	return collections
}
