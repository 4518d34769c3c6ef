package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// GeoJSON reads and writes a single Polygon Feature. Coordinates are
// [longitude, latitude] on the wire.
type GeoJSON struct {
	// Now stamps the generated_at property on encode. Defaults to time.Now.
	Now func() time.Time
}

var jsonNull = []byte("null")

// Decode accepts a Feature, or a FeatureCollection whose first feature is used.
func (c GeoJSON) Decode(data []byte) (domain.BoundaryPolygon, error) {
	if !json.Valid(data) {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrParseFailure, "malformed JSON")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, "expected a JSON object")
	}
	return c.decodeObject(obj)
}

func (c GeoJSON) decodeObject(obj map[string]json.RawMessage) (domain.BoundaryPolygon, error) {
	rawType, ok := obj["type"]
	if !ok {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, `"type" is required`)
	}
	var typ string
	_ = json.Unmarshal(rawType, &typ)

	if typ == "FeatureCollection" {
		var features []map[string]json.RawMessage
		if err := json.Unmarshal(obj["features"], &features); err != nil || len(features) == 0 {
			return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, "feature collection has no features")
		}
		return c.decodeObject(features[0])
	}

	rawGeom, ok := obj["geometry"]
	if !ok || len(bytes.TrimSpace(rawGeom)) == 0 || bytes.Equal(bytes.TrimSpace(rawGeom), jsonNull) {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, `"geometry" is required`)
	}

	if err := requireCoordinates(rawGeom); err != nil {
		return domain.BoundaryPolygon{}, err
	}

	geom, err := geojson.UnmarshalGeometry(rawGeom)
	if err != nil {
		return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatGeoJSON, domain.ErrParseFailure, "invalid geometry", err)
	}

	var ring orb.Ring
	switch g := geom.Geometry().(type) {
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, "polygon has no coordinates")
		}
		ring = g[0]
	case orb.MultiPolygon:
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrUnsupportedVariant, "MultiPolygon is not supported")
	case nil:
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, "geometry has no coordinates")
	default:
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGeoJSON, domain.ErrUnsupportedVariant, fmt.Sprintf("geometry type %s is not supported", g.GeoJSONType()))
	}

	vertices := make([]domain.Coordinate, 0, len(ring))
	for _, pt := range ring {
		vertices = append(vertices, domain.Coordinate{Lat: pt[1], Lon: pt[0]})
	}
	vertices = normalizeRing(vertices)
	if err := requireFloor(domain.FormatGeoJSON, vertices); err != nil {
		return domain.BoundaryPolygon{}, err
	}

	return domain.BoundaryPolygon{Vertices: vertices, Metadata: propertiesToMetadata(obj["properties"])}, nil
}

// requireCoordinates reports an empty geometry object, or one without
// coordinates, as a missing field. Collections carry "geometries" instead and
// are left to the type check.
func requireCoordinates(raw json.RawMessage) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil
	}
	if len(members) == 0 {
		return domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, "geometry is empty")
	}
	if _, ok := members["geometries"]; ok {
		return nil
	}
	coords, ok := members["coordinates"]
	if !ok || bytes.Equal(bytes.TrimSpace(coords), jsonNull) {
		return domain.NewFormatError(domain.FormatGeoJSON, domain.ErrMissingField, `geometry has no "coordinates"`)
	}
	return nil
}

// Encode writes a Feature with one explicitly closed ring and the metadata as properties.
func (c GeoJSON) Encode(p domain.BoundaryPolygon) ([]byte, error) {
	closed := p.Closed()
	ring := make(orb.Ring, 0, len(closed))
	for _, v := range closed {
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}

	f := geojson.NewFeature(orb.Polygon{ring})
	for k, v := range p.Metadata {
		f.Properties[k] = v
	}
	f.Properties["generated_at"] = c.now().UTC().Format(time.RFC3339)

	return json.Marshal(f)
}

func (c GeoJSON) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// propertiesToMetadata keeps scalar properties; nested values are not descriptive metadata.
func propertiesToMetadata(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var props map[string]interface{}
	if err := json.Unmarshal(raw, &props); err != nil || len(props) == 0 {
		return nil
	}
	meta := make(map[string]string, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			meta[k] = val
		case float64:
			meta[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			meta[k] = strconv.FormatBool(val)
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
