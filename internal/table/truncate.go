package table

import (
	"sort"
	"strings"

	"github.com/hyperjump/aibridge/internal/tokenizer"
)

// Empty is returned for a result with no rows.
const Empty = "EMPTY"

// DefaultMaxTokens bounds a serialized result when no budget is configured.
const DefaultMaxTokens = 20000

// Truncator serializes tables within a token budget.
type Truncator struct {
	counter   tokenizer.Counter
	maxTokens int
}

// NewTruncator returns a Truncator counting with counter. A non-positive
// maxTokens selects DefaultMaxTokens.
func NewTruncator(counter tokenizer.Counter, maxTokens int) *Truncator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Truncator{counter: counter, maxTokens: maxTokens}
}

// MaxTokens returns the budget.
func (tr *Truncator) MaxTokens() int { return tr.maxTokens }

// Truncate serializes t, keeping the longest prefix of rows whose
// serialization fits the budget. It returns Empty when t has no rows and ""
// when not even one row fits.
func (tr *Truncator) Truncate(t *ResultTable, format Format) string {
	if t.Len() == 0 {
		return Empty
	}
	full := Render(t, format, t.Len())
	if tr.counter.Count(full) <= tr.maxTokens {
		return strings.TrimSpace(full)
	}

	// First prefix length whose serialization is over budget. Token cost
	// is non-decreasing in the number of rows, so the predicate flips once.
	cutoff := sort.Search(t.Len()+1, func(n int) bool {
		return tr.tooBig(Render(t, format, n))
	})
	if cutoff == 0 {
		return ""
	}

	out := Render(t, format, cutoff)
	if tr.tooBig(out) {
		// Single corrective step; formatting overhead is not additive per row.
		cutoff--
		if cutoff == 0 {
			return ""
		}
		out = Render(t, format, cutoff)
	}
	return strings.TrimSpace(out)
}

func (tr *Truncator) tooBig(s string) bool {
	return tr.counter.Count(s) > tr.maxTokens
}
