package usecases

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/pkg/geospatial"
)

// Validation rule names, used as metric labels.
const (
	RuleVertexFloor      = "vertex_floor"
	RuleSelfIntersection = "self_intersection"
	RuleAreaTooSmall     = "area_too_small"
	RuleAreaTooLarge     = "area_too_large"
	RuleCoordinateRange  = "coordinate_range"
)

// ValidatorConfig holds the geometric thresholds. Zero values fall back to
// the defaults.
type ValidatorConfig struct {
	MinVertices int
	MinAreaM2   float64
	MaxAreaM2   float64
}

// DefaultValidatorConfig returns the 3 vertex, 1 to 100 hectare limits.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinVertices: domain.MinVertices,
		MinAreaM2:   1 * geospatial.SquareMetersPerHectare,
		MaxAreaM2:   100 * geospatial.SquareMetersPerHectare,
	}
}

// Violation is a single failed rule.
type Violation struct {
	Rule    string
	Message string
}

// Validator checks a polygon against the geometric rules. Every applicable
// rule runs; failures accumulate rather than short-circuit.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	def := DefaultValidatorConfig()
	if cfg.MinVertices <= 0 {
		cfg.MinVertices = def.MinVertices
	}
	if cfg.MinAreaM2 <= 0 {
		cfg.MinAreaM2 = def.MinAreaM2
	}
	if cfg.MaxAreaM2 <= 0 {
		cfg.MaxAreaM2 = def.MaxAreaM2
	}
	return &Validator{cfg: cfg}
}

// Config returns the effective thresholds.
func (v *Validator) Config() ValidatorConfig {
	return v.cfg
}

// Validate returns a report; it never fails.
func (v *Validator) Validate(p domain.BoundaryPolygon) domain.ValidationReport {
	return Report(v.Check(p))
}

// Report turns the violations found by Check into a report.
func Report(violations []Violation) domain.ValidationReport {
	report := domain.ValidationReport{Valid: len(violations) == 0, Errors: make([]string, 0, len(violations))}
	for _, vi := range violations {
		report.Errors = append(report.Errors, vi.Message)
	}
	return report
}

// Check runs the rules in order: vertex floor, self-intersection, area
// bounds, coordinate range. Area and intersection need a ring of at least
// three vertices and are skipped below that.
func (v *Validator) Check(p domain.BoundaryPolygon) []Violation {
	var out []Violation

	if len(p.Vertices) < v.cfg.MinVertices {
		out = append(out, Violation{RuleVertexFloor, fmt.Sprintf("Polygon must have at least %d vertices", v.cfg.MinVertices)})
	}

	if len(p.Vertices) >= domain.MinVertices {
		ring := ringOf(p)

		if geospatial.SelfIntersects(ring) {
			out = append(out, Violation{RuleSelfIntersection, "Polygon has self-intersections"})
		}

		area := geospatial.Area(ring)
		switch {
		case area < v.cfg.MinAreaM2:
			out = append(out, Violation{RuleAreaTooSmall, fmt.Sprintf("Polygon area is too small (minimum %s)", hectares(v.cfg.MinAreaM2))})
		case area > v.cfg.MaxAreaM2:
			out = append(out, Violation{RuleAreaTooLarge, fmt.Sprintf("Polygon area is too large (maximum %s)", hectares(v.cfg.MaxAreaM2))})
		}
	}

	for _, c := range p.Vertices {
		if !c.Finite() || !c.InRange() {
			out = append(out, Violation{RuleCoordinateRange, "Polygon has coordinates out of range"})
			break
		}
	}

	return out
}

func hectares(m2 float64) string {
	ha := m2 / geospatial.SquareMetersPerHectare
	s := strconv.FormatFloat(ha, 'f', -1, 64)
	if ha == 1 {
		return s + " hectare"
	}
	return s + " hectares"
}

// ringOf converts vertices to an open orb ring in lon/lat order.
func ringOf(p domain.BoundaryPolygon) orb.Ring {
	ring := make(orb.Ring, 0, len(p.Vertices))
	for _, c := range p.Vertices {
		ring = append(ring, orb.Point{c.Lon, c.Lat})
	}
	return ring
}

// Summarize derives measurements of p.
func Summarize(p domain.BoundaryPolygon) domain.BoundarySummary {
	s := domain.BoundarySummary{VertexCount: len(p.Vertices)}
	if len(p.Vertices) == 0 {
		return s
	}

	ring := ringOf(p)
	s.AreaM2 = geospatial.Area(ring)
	s.AreaHectares = s.AreaM2 / geospatial.SquareMetersPerHectare
	s.PerimeterM = geospatial.Perimeter(ring)

	c := geospatial.Centroid(ring)
	s.Centroid = domain.Coordinate{Lat: c.Lat(), Lon: c.Lon()}

	b := geospatial.Bound(ring)
	s.Bounds = domain.Bounds{MinLat: b.Min.Lat(), MinLon: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLon: b.Max.Lon()}
	return s
}
