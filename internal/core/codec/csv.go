package codec

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// CSV reads point tables with a header row and writes
// latitude,longitude,point_order rows. The ring is not re-closed on export.
type CSV struct{}

// Columns holds the header positions chosen for each role.
type Columns struct {
	Lat int
	Lon int
}

// DetectColumns scans a header case-insensitively. A column holds latitude if
// its name contains "lat" or is "y", longitude if it contains "lon"/"lng" or
// is "x". The leftmost match wins for each role.
func DetectColumns(header []string) (Columns, bool) {
	cols := Columns{Lat: -1, Lon: -1}
	for i, h := range header {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(h), `"'`))
		if cols.Lat < 0 && (strings.Contains(name, "lat") || name == "y") {
			cols.Lat = i
			continue
		}
		if cols.Lon < 0 && (strings.Contains(name, "lon") || strings.Contains(name, "lng") || name == "x") {
			cols.Lon = i
		}
	}
	return cols, cols.Lat >= 0 && cols.Lon >= 0
}

// Decode skips rows whose selected fields are not finite numbers.
func (CSV) Decode(data []byte) (domain.BoundaryPolygon, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	lines := strings.Split(string(data), "\n")

	cols, ok := DetectColumns(strings.Split(strings.TrimRight(lines[0], "\r"), ","))
	if !ok {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatCSV, domain.ErrMissingField, "header needs a latitude and a longitude column")
	}

	var vertices []domain.Coordinate
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if cols.Lat >= len(fields) || cols.Lon >= len(fields) {
			continue
		}
		lat, okLat := parseFinite(unquote(fields[cols.Lat]))
		lon, okLon := parseFinite(unquote(fields[cols.Lon]))
		if !okLat || !okLon {
			continue
		}
		vertices = append(vertices, domain.Coordinate{Lat: lat, Lon: lon})
	}

	vertices = normalizeRing(vertices)
	if err := requireFloor(domain.FormatCSV, vertices); err != nil {
		return domain.BoundaryPolygon{}, err
	}
	return domain.BoundaryPolygon{Vertices: vertices}, nil
}

// Encode writes one row per vertex with a 1-based point_order.
func (CSV) Encode(p domain.BoundaryPolygon) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"latitude", "longitude", "point_order"}); err != nil {
		return nil, err
	}
	for i, v := range p.Vertices {
		if err := w.Write([]string{formatFloat(v.Lat), formatFloat(v.Lon), strconv.Itoa(i + 1)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
