package codec

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// minWKTPositions is the closed-ring minimum: three corners plus the closing point.
const minWKTPositions = 4

var (
	wktKeyword = regexp.MustCompile(`^[A-Za-z]+`)
	wktDims    = regexp.MustCompile(`^(?i:ZM|Z|M)\b`)
	// wktPosition matches one position and any ordinates past x y.
	wktPosition = regexp.MustCompile(`([^\s,()]+)\s+([^\s,()]+)(?:\s+[^\s,()]+)*`)
)

// WKT reads and writes POLYGON text. Only the outer ring is used; MULTIPOLYGON
// and collections are rejected.
type WKT struct{}

// Decode parses `POLYGON((lon lat, ...))`. Z/M dimension tags are tolerated
// and extra ordinates ignored.
func (WKT) Decode(data []byte) (domain.BoundaryPolygon, error) {
	text := strings.TrimSpace(string(data))
	keyword := strings.ToUpper(wktKeyword.FindString(text))

	geom, err := wkt.Unmarshal(flattenWKT(text, keyword))
	if err != nil {
		if keyword != "POLYGON" || errors.Is(err, wkt.ErrUnsupportedGeometry) {
			return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatWKT, domain.ErrUnsupportedVariant, "expected POLYGON, got "+strconv.Quote(keyword))
		}
		return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatWKT, domain.ErrParseFailure, "invalid POLYGON", err)
	}

	poly, ok := geom.(orb.Polygon)
	if !ok {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatWKT, domain.ErrUnsupportedVariant, "expected POLYGON, got "+strconv.Quote(keyword))
	}
	if len(poly) == 0 {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatWKT, domain.ErrInsufficientVertices, "empty polygon")
	}

	ring := poly[0]
	if len(ring) < minWKTPositions {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatWKT, domain.ErrInsufficientVertices,
			"ring needs at least "+strconv.Itoa(minWKTPositions)+" positions, got "+strconv.Itoa(len(ring)))
	}

	vertices := make([]domain.Coordinate, 0, len(ring))
	for _, pt := range ring {
		c := domain.Coordinate{Lat: pt[1], Lon: pt[0]}
		if !c.Finite() {
			return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatWKT, domain.ErrParseFailure, "non-finite position")
		}
		vertices = append(vertices, c)
	}

	vertices = normalizeRing(vertices)
	if err := requireFloor(domain.FormatWKT, vertices); err != nil {
		return domain.BoundaryPolygon{}, err
	}
	return domain.BoundaryPolygon{Vertices: vertices}, nil
}

// flattenWKT rewrites a tagged or 3D/4D geometry into the 2D form orb reads:
// the dimension tag is dropped and every position keeps only x and y.
func flattenWKT(text, keyword string) string {
	if keyword == "" {
		return text
	}
	rest := strings.TrimSpace(text[len(keyword):])
	if tag := wktDims.FindString(rest); tag != "" {
		rest = strings.TrimSpace(rest[len(tag):])
	}
	if strings.EqualFold(rest, "EMPTY") {
		return keyword + " EMPTY"
	}
	return keyword + " " + wktPosition.ReplaceAllString(rest, "$1 $2")
}

// Encode writes POLYGON((lon lat, ...)) with the first vertex repeated at the end.
func (WKT) Encode(p domain.BoundaryPolygon) ([]byte, error) {
	closed := p.Closed()
	positions := make([]string, 0, len(closed))
	for _, v := range closed {
		positions = append(positions, formatFloat(v.Lon)+" "+formatFloat(v.Lat))
	}
	return []byte("POLYGON((" + strings.Join(positions, ", ") + "))"), nil
}
