package chroma

import "context"

// Document is one embedded passage stored in the collection.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// QueryResult is one nearest-neighbour match. Lower distance is closer.
type QueryResult struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// Filter is a Chroma metadata where clause.
type Filter map[string]any

// Eq matches documents whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{field: value}
}

// In matches documents whose field is one of values.
func In(field string, values []string) Filter {
	return Filter{field: map[string]any{"$in": values}}
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// MetaString reads a string metadata value, tolerating absent keys.
func MetaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// MetaFloat reads a numeric metadata value. The second result is false when
// the key is absent or not a number.
func MetaFloat(meta map[string]any, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
