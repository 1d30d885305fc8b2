package repo

import (
	"strconv"
	"strings"

	"lessonline/internal/vector"
)

// Vectors are persisted in the "(a;b)" literal form at full precision.

func parseVec(s string) ([]float64, error) {
	v, err := vector.Parse(s)
	if err != nil {
		return nil, err
	}
	return v.Values(), nil
}

func formatVec(vals []float64) string {
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "(" + strings.Join(parts, ";") + ")"
}
