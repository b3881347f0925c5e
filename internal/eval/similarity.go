package eval

import (
	"math"

	"github.com/pgvector/pgvector-go"
)

// DefaultGoldStandard maps known questions to their reference answers.
// Similarity is only graded on an exact question match; unmatched questions
// silently skip the metric. Refusals are themselves gradable answers.
func DefaultGoldStandard() map[string]string {
	return map[string]string{
		"Calculate 25 times 4.":            "100",
		"What is the weather in Dallas?":   "75 F, Sunny",
		"Who is the President of France?":  "I cannot answer that",
		"What is the weather in Atlantis?": "Unknown location",
	}
}

// Cosine computes the cosine similarity of two vectors in [-1, 1]. A zero
// vector has no direction, so any comparison against one scores 0.
func Cosine(a, b pgvector.Vector) float64 {
	va, vb := a.Slice(), b.Slice()
	if len(va) == 0 || len(va) != len(vb) {
		return 0
	}

	var dot, normA, normB float64
	for i := range va {
		dot += float64(va[i]) * float64(vb[i])
		normA += float64(va[i]) * float64(va[i])
		normB += float64(vb[i]) * float64(vb[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
