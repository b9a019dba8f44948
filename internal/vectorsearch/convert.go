package vectorsearch

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// toFloat converts a numeric cell decoded from JSON or built in process.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// toVector converts an embedding cell to []float32.
func toVector(v any) ([]float32, error) {
	switch vec := v.(type) {
	case []float32:
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	case []float64:
		out := make([]float32, len(vec))
		for i, f := range vec {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(vec))
		for i, e := range vec {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("vector element %d is %T, not a number", i, e)
			}
			out[i] = float32(f)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing vector")
	}
	return nil, fmt.Errorf("vector is %T", v)
}
