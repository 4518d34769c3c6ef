package codec

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// maxKMZEntry caps how much of a zipped KML entry is read.
const maxKMZEntry = 16 << 20

var zipSignature = []byte("PK\x03\x04")

// KML reads the first <coordinates> element of a document and writes a
// single Placemark > Polygon > outerBoundaryIs > LinearRing.
type KML struct{}

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name      string       `xml:"name,omitempty"`
	Placemark kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string     `xml:"name"`
	Description string     `xml:"description,omitempty"`
	Polygon     kmlPolygon `xml:"Polygon"`
}

type kmlPolygon struct {
	OuterBoundaryIs struct {
		LinearRing struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
}

// Decode accepts plain KML or a KMZ archive.
func (KML) Decode(data []byte) (domain.BoundaryPolygon, error) {
	if bytes.HasPrefix(data, zipSignature) {
		inner, err := unzipKML(data)
		if err != nil {
			return domain.BoundaryPolygon{}, err
		}
		data = inner
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	var name string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatKML, domain.ErrParseFailure, "malformed XML", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "name":
			var s string
			if err := dec.DecodeElement(&s, &start); err != nil {
				return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatKML, domain.ErrParseFailure, "malformed XML", err)
			}
			if name == "" {
				name = strings.TrimSpace(s)
			}
		case "coordinates":
			var s string
			if err := dec.DecodeElement(&s, &start); err != nil {
				return domain.BoundaryPolygon{}, domain.WrapFormatError(domain.FormatKML, domain.ErrParseFailure, "malformed XML", err)
			}
			return decodeKMLCoordinates(s, name)
		}
	}

	return domain.BoundaryPolygon{}, domain.NewFormatError(domain.FormatKML, domain.ErrMissingField, "no <coordinates> element")
}

// decodeKMLCoordinates parses whitespace separated lon,lat[,alt] tuples,
// dropping tuples that do not hold two finite numbers.
func decodeKMLCoordinates(text, name string) (domain.BoundaryPolygon, error) {
	var vertices []domain.Coordinate
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, okLon := parseFinite(parts[0])
		lat, okLat := parseFinite(parts[1])
		if !okLon || !okLat {
			continue
		}
		vertices = append(vertices, domain.Coordinate{Lat: lat, Lon: lon})
	}

	vertices = normalizeRing(vertices)
	if err := requireFloor(domain.FormatKML, vertices); err != nil {
		return domain.BoundaryPolygon{}, err
	}

	p := domain.BoundaryPolygon{Vertices: vertices}
	if name != "" {
		p.Metadata = map[string]string{"name": name}
	}
	return p, nil
}

func unzipKML(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapFormatError(domain.FormatKML, domain.ErrParseFailure, "invalid KMZ archive", err)
	}
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, domain.WrapFormatError(domain.FormatKML, domain.ErrParseFailure, "invalid KMZ entry", err)
		}
		inner, err := io.ReadAll(io.LimitReader(rc, maxKMZEntry))
		rc.Close()
		if err != nil {
			return nil, domain.WrapFormatError(domain.FormatKML, domain.ErrParseFailure, "invalid KMZ entry", err)
		}
		return inner, nil
	}
	return nil, domain.NewFormatError(domain.FormatKML, domain.ErrMissingField, "KMZ archive has no .kml entry")
}

// Encode writes a minimal KML document with an explicitly closed ring.
func (KML) Encode(p domain.BoundaryPolygon) ([]byte, error) {
	closed := p.Closed()
	triples := make([]string, 0, len(closed))
	for _, v := range closed {
		triples = append(triples, formatFloat(v.Lon)+","+formatFloat(v.Lat)+",0")
	}

	name := p.Metadata["name"]
	if name == "" {
		name = "Site boundary"
	}

	doc := kmlRoot{Xmlns: kmlNamespace}
	doc.Document.Name = name
	doc.Document.Placemark.Name = name
	doc.Document.Placemark.Description = p.Metadata["description"]
	doc.Document.Placemark.Polygon.OuterBoundaryIs.LinearRing.Coordinates = strings.Join(triples, " ")

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
