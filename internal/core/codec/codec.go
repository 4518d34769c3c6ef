// Package codec converts site boundaries to and from external geospatial file
// formats. Every decoder returns a normalised, open ring (no closing vertex, no
// consecutive duplicates); every encoder writes the ring the way its format
// expects it.
package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// Decoder turns a wire payload into a boundary polygon.
type Decoder interface {
	Decode(data []byte) (domain.BoundaryPolygon, error)
}

// Encoder turns a boundary polygon into a wire payload.
type Encoder interface {
	Encode(p domain.BoundaryPolygon) ([]byte, error)
}

// Capability describes what a registered format supports.
type Capability struct {
	Format     domain.Format `json:"format"`
	Decode     bool          `json:"decode"`
	Encode     bool          `json:"encode"`
	Extensions []string      `json:"extensions,omitempty"`
}

// Registry dispatches decode/encode calls to the codec registered for a format.
type Registry struct {
	decoders map[domain.Format]Decoder
	encoders map[domain.Format]Encoder
}

// NewRegistry returns a registry with every built-in codec registered.
// GPX is decode-only.
func NewRegistry() *Registry {
	r := &Registry{
		decoders: make(map[domain.Format]Decoder),
		encoders: make(map[domain.Format]Encoder),
	}

	geo := GeoJSON{}
	r.decoders[domain.FormatGeoJSON] = geo
	r.encoders[domain.FormatGeoJSON] = geo

	kml := KML{}
	r.decoders[domain.FormatKML] = kml
	r.encoders[domain.FormatKML] = kml

	r.decoders[domain.FormatGPX] = GPX{}

	csv := CSV{}
	r.decoders[domain.FormatCSV] = csv
	r.encoders[domain.FormatCSV] = csv

	wkt := WKT{}
	r.decoders[domain.FormatWKT] = wkt
	r.encoders[domain.FormatWKT] = wkt

	return r
}

// Register replaces the decoder and/or encoder for a format. Nil values are ignored.
func (r *Registry) Register(f domain.Format, dec Decoder, enc Encoder) {
	if dec != nil {
		r.decoders[f] = dec
	}
	if enc != nil {
		r.encoders[f] = enc
	}
}

// Decode parses data in format f.
func (r *Registry) Decode(f domain.Format, data []byte) (domain.BoundaryPolygon, error) {
	dec, ok := r.decoders[f]
	if !ok {
		return domain.BoundaryPolygon{}, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, f)
	}
	return dec.Decode(data)
}

// Encode serialises p in format f.
func (r *Registry) Encode(f domain.Format, p domain.BoundaryPolygon) ([]byte, error) {
	if err := r.CheckEncode(f); err != nil {
		return nil, err
	}
	if len(p.Vertices) == 0 {
		return nil, domain.ErrNoPolygon
	}
	return r.encoders[f].Encode(p)
}

// CheckEncode returns ErrExportUnsupported for decode-only formats and
// ErrUnknownFormat for unregistered ones.
func (r *Registry) CheckEncode(f domain.Format) error {
	if _, ok := r.encoders[f]; ok {
		return nil
	}
	if _, known := r.decoders[f]; known {
		return fmt.Errorf("%w: %s", domain.ErrExportUnsupported, f)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownFormat, f)
}

// Capabilities lists the registered formats in a stable order.
func (r *Registry) Capabilities() []Capability {
	caps := make([]Capability, 0, len(domain.Formats))
	for _, f := range domain.Formats {
		_, dec := r.decoders[f]
		_, enc := r.encoders[f]
		if !dec && !enc {
			continue
		}
		caps = append(caps, Capability{
			Format:     f,
			Decode:     dec,
			Encode:     enc,
			Extensions: extensionsFor(f),
		})
	}
	return caps
}

var extensionFormats = map[string]domain.Format{
	"json":    domain.FormatGeoJSON,
	"geojson": domain.FormatGeoJSON,
	"kml":     domain.FormatKML,
	"kmz":     domain.FormatKML,
	"gpx":     domain.FormatGPX,
	"csv":     domain.FormatCSV,
}

// FormatFromExtension routes an uploaded file to a format by its extension.
// WKT is not file-routed.
func FormatFromExtension(filename string) (domain.Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: unsupported file extension %q", domain.ErrUnknownFormat, ext)
}

func extensionsFor(f domain.Format) []string {
	var exts []string
	for _, ext := range []string{"json", "geojson", "kml", "kmz", "gpx", "csv"} {
		if extensionFormats[ext] == f {
			exts = append(exts, ext)
		}
	}
	return exts
}
