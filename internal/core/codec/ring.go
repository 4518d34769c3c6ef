package codec

import (
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// normalizeRing drops consecutive duplicates and any trailing copies of the
// first vertex left over from closed-ring wire conventions.
func normalizeRing(vertices []domain.Coordinate) []domain.Coordinate {
	out := make([]domain.Coordinate, 0, len(vertices))
	for _, v := range vertices {
		if n := len(out); n > 0 && out[n-1] == v {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && out[len(out)-1] == out[0] {
		out = out[:len(out)-1]
	}
	return out
}

// requireFloor fails with ErrInsufficientVertices below the polygon vertex floor.
func requireFloor(f domain.Format, vertices []domain.Coordinate) error {
	if len(vertices) < domain.MinVertices {
		return domain.NewFormatError(f, domain.ErrInsufficientVertices,
			"polygon needs at least "+strconv.Itoa(domain.MinVertices)+" distinct vertices, got "+strconv.Itoa(len(vertices)))
	}
	return nil
}

// parseFinite parses a trimmed float and rejects NaN and infinities.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// formatFloat renders the shortest representation that round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
