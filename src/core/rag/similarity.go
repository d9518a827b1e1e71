package rag

import (
	"math"
	"sort"
)

// Candidate is one stored chunk considered for retrieval.
type Candidate struct {
	ID       uint
	FileName string
	Content  string
	Vector   []float32
}

// Scored pairs a candidate with its similarity to the query.
type Scored struct {
	Candidate
	Similarity float32
}

// CosineSimilarity over the overlapping prefix of the two vectors. Rows
// embedded with an older model may be shorter; comparing the shared prefix
// degrades their score instead of failing the query. A zero-norm vector
// yields exactly 0.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// RankTopK scores candidates against the query vector and returns the top
// k by similarity descending, dropping anything below minSimilarity. Ties
// keep input order.
func RankTopK(query []float32, candidates []Candidate, k int, minSimilarity float32) []Scored {
	if k <= 0 {
		return nil
	}
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		sim := CosineSimilarity(query, c.Vector)
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, Scored{Candidate: c, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
