package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// SquareMetersPerHectare converts between the two area units used in reports.
const SquareMetersPerHectare = 10_000.0

// Area returns the spherical surface area of the ring in square meters,
// independent of winding order.
func Area(ring orb.Ring) float64 {
	ring = open(ring)
	if len(ring) < 3 {
		return 0
	}
	return math.Abs(geo.Area(ring))
}

// Centroid returns the planar centroid of the ring in lon/lat space. For a
// degenerate ring with no area it falls back to the vertex average.
func Centroid(ring orb.Ring) orb.Point {
	ring = open(ring)
	if len(ring) == 0 {
		return orb.Point{}
	}
	if c, area := planar.CentroidArea(orb.Polygon{closed(ring)}); area != 0 {
		return c
	}
	var sum orb.Point
	for _, p := range ring {
		sum[0] += p[0]
		sum[1] += p[1]
	}
	n := float64(len(ring))
	return orb.Point{sum[0] / n, sum[1] / n}
}

// Bound returns the ring's bounding box.
func Bound(ring orb.Ring) orb.Bound {
	return ring.Bound()
}

func open(ring orb.Ring) orb.Ring {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		return ring[:len(ring)-1]
	}
	return ring
}

func closed(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(ring)+1)
	out = append(out, ring...)
	return append(out, ring[0])
}
