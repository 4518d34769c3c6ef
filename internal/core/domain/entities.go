package domain

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MinVertices is the vertex floor for any accepted polygon.
const MinVertices = 3

// BoundaryPolygon is a site boundary: an ordered ring of vertices that closes
// implicitly from the last vertex back to the first.
type BoundaryPolygon struct {
	Vertices []Coordinate      `json:"vertices"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewBoundaryPolygon copies vertices and metadata into a new polygon.
func NewBoundaryPolygon(vertices []Coordinate, metadata map[string]string) BoundaryPolygon {
	p := BoundaryPolygon{Vertices: make([]Coordinate, len(vertices))}
	copy(p.Vertices, vertices)
	if len(metadata) > 0 {
		p.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			p.Metadata[k] = v
		}
	}
	return p
}

// Clone returns a deep copy so callers never share backing arrays with the store.
func (p BoundaryPolygon) Clone() BoundaryPolygon {
	return NewBoundaryPolygon(p.Vertices, p.Metadata)
}

// Closed returns the vertices with the first vertex repeated at the end.
func (p BoundaryPolygon) Closed() []Coordinate {
	if len(p.Vertices) == 0 {
		return nil
	}
	ring := make([]Coordinate, 0, len(p.Vertices)+1)
	ring = append(ring, p.Vertices...)
	return append(ring, p.Vertices[0])
}

// Fingerprint hashes the vertices and metadata. Equal polygons share a
// fingerprint regardless of which session or revision holds them.
func (p BoundaryPolygon) Fingerprint() string {
	d := xxhash.New()
	buf := make([]byte, 0, 16)
	for _, v := range p.Vertices {
		buf = binary.LittleEndian.AppendUint64(buf[:0], math.Float64bits(v.Lat))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Lon))
		_, _ = d.Write(buf)
	}
	keys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(p.Metadata[k])
		_, _ = d.WriteString("\x00")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// Format identifies an external geospatial file format.
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatKML     Format = "kml"
	FormatGPX     Format = "gpx"
	FormatCSV     Format = "csv"
	FormatWKT     Format = "wkt"
)

// Formats lists every supported format in a stable order.
var Formats = []Format{FormatGeoJSON, FormatKML, FormatGPX, FormatCSV, FormatWKT}

// ParseFormat resolves a format name as used by export requests.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "geojson", "json":
		return FormatGeoJSON, nil
	case "kml":
		return FormatKML, nil
	case "gpx":
		return FormatGPX, nil
	case "csv":
		return FormatCSV, nil
	case "wkt":
		return FormatWKT, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType returns the MIME type used when serving an encoded boundary.
func (f Format) ContentType() string {
	switch f {
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	case FormatGPX:
		return "application/gpx+xml"
	case FormatCSV:
		return "text/csv"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension for downloads, without the dot.
func (f Format) Extension() string {
	if f == FormatGeoJSON {
		return "geojson"
	}
	return string(f)
}

// ValidationReport is the outcome of one validation call.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// BoundaryChange is emitted whenever a session's active polygon is replaced or cleared.
type BoundaryChange struct {
	SessionID string           `json:"session_id"`
	Revision  int64            `json:"revision"`
	Cleared   bool             `json:"cleared"`
	Polygon   *BoundaryPolygon `json:"polygon,omitempty"`
	At        time.Time        `json:"at"`
}

// Fingerprint identifies the state a change produced.
func (c BoundaryChange) Fingerprint() string {
	if c.Cleared || c.Polygon == nil {
		return "cleared"
	}
	return c.Polygon.Fingerprint()
}

// BoundarySummary holds derived measurements of a polygon.
type BoundarySummary struct {
	VertexCount  int        `json:"vertex_count"`
	AreaM2       float64    `json:"area_m2"`
	AreaHectares float64    `json:"area_hectares"`
	PerimeterM   float64    `json:"perimeter_m"`
	Centroid     Coordinate `json:"centroid"`
	Bounds       Bounds     `json:"bounds"`
}

// SessionInfo describes an active boundary session.
type SessionInfo struct {
	ID          string    `json:"id"`
	HasBoundary bool      `json:"has_boundary"`
	Revision    int64     `json:"revision"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StoredBoundary is the persisted state of one session's active polygon.
// A cleared session keeps its row as a tombstone so revisions never restart.
type StoredBoundary struct {
	SessionID string          `json:"session_id"`
	Revision  int64           `json:"revision"`
	Cleared   bool            `json:"cleared"`
	Polygon   BoundaryPolygon `json:"polygon"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// HistoryEntry is one archived boundary change.
type HistoryEntry struct {
	ID        int64            `json:"id"`
	SessionID string           `json:"session_id"`
	Revision  int64            `json:"revision"`
	Cleared   bool             `json:"cleared"`
	Polygon   *BoundaryPolygon `json:"polygon,omitempty"`
	At        time.Time        `json:"at"`
}
