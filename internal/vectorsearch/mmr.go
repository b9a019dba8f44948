package vectorsearch

import (
	"math"

	"github.com/hyperjump/aibridge/pkg/utils"
)

// MaximalMarginalRelevance selects up to k indexes of embeddings that are
// similar to query yet diverse among themselves. lambda weighs relevance
// (1) against diversity (0). The most similar embedding is always picked
// first; the result is in selection order.
func MaximalMarginalRelevance(query []float32, embeddings [][]float32, lambda float64, k int) []int {
	if k > len(embeddings) {
		k = len(embeddings)
	}
	if k <= 0 {
		return nil
	}

	toQuery := make([]float64, len(embeddings))
	best := 0
	for i, e := range embeddings {
		toQuery[i] = utils.Cosine(query, e)
		if toQuery[i] > toQuery[best] {
			best = i
		}
	}

	selected := []int{best}
	picked := map[int]bool{best: true}
	// redundancy[i] is the max similarity of candidate i to any selected one.
	redundancy := make([]float64, len(embeddings))
	for i := range redundancy {
		redundancy[i] = utils.Cosine(embeddings[i], embeddings[best])
	}

	for len(selected) < k {
		next, bestScore := -1, math.Inf(-1)
		for i := range embeddings {
			if picked[i] {
				continue
			}
			score := lambda*toQuery[i] - (1-lambda)*redundancy[i]
			if score > bestScore {
				next, bestScore = i, score
			}
		}
		if next < 0 {
			break
		}
		selected = append(selected, next)
		picked[next] = true
		for i := range redundancy {
			if sim := utils.Cosine(embeddings[i], embeddings[next]); sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}
