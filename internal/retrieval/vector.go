package retrieval

import (
	"encoding/json"
	"math"
)

// parseVector decodes a JSON-encoded float array. Returns nil on empty or
// malformed input; callers treat nil as "no vector".
func parseVector(s string) []float32 {
	if s == "" {
		return nil
	}

	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}

	return v
}

// cosineSimilarity returns dot(a,b)/(|a||b|), or 0 when the dimensions
// differ or either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / math.Sqrt(normA*normB)
}
