package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// GPX collects every <trkpt> of a document in order. It is decode-only and
// leaves the vertex floor to the caller.
type GPX struct{}

// Decode reads lat/lon attributes of each track point. A missing or
// unparsable attribute becomes 0, so callers should validate the result.
func (GPX) Decode(data []byte) (domain.BoundaryPolygon, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	var (
		vertices []domain.Coordinate
		name     string
		inTrack  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatGPX, domain.ErrParseFailure, "malformed XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "trk":
				inTrack = true
			case "name":
				if inTrack && name == "" {
					var s string
					if err := dec.DecodeElement(&s, &t); err != nil {
						return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatGPX, domain.ErrParseFailure, "malformed XML", err)
					}
					name = strings.TrimSpace(s)
				}
			case "trkpt":
				vertices = append(vertices, trackPoint(t.Attr))
			}
		case xml.EndElement:
			if t.Name.Local == "trk" {
				inTrack = false
			}
		}
	}

	if len(vertices) == 0 {
		return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatGPX, domain.ErrMissingField, "no <trkpt> elements")
	}

	p := domain.BoundaryPolygon{Vertices: normalizeRing(vertices)}
	if name != "" {
		p.Metadata = map[string]string{"name": name}
	}
	return p, nil
}

func trackPoint(attrs []xml.Attr) domain.Coordinate {
	var c domain.Coordinate
	for _, a := range attrs {
		v, ok := parseFinite(a.Value)
		if !ok {
			continue
		}
		switch a.Name.Local {
		case "lat":
			c.Lat = v
		case "lon":
			c.Lon = v
		}
	}
	return c
}
