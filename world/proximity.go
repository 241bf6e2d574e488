package world

import (
	"math"

	"github.com/wfunc/geoworld/models"
)

// Distance is the straight-line distance between two positions in degrees,
// treating latitude and longitude as a flat plane. It ignores meridian
// convergence, so east-west ranges shrink in real metres away from the
// equator; ranges are tuned for city-scale play where that error is small.
func Distance(a, b models.Position) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

// WithinRange reports whether b is at most r away from a. The bound is
// inclusive.
func WithinRange(a, b models.Position, r float64) bool {
	return Distance(a, b) <= r
}

func centroid(ps []models.Position, fallback models.Position) models.Position {
	if len(ps) == 0 {
		return fallback
	}
	var c models.Position
	for _, p := range ps {
		c.Lat += p.Lat
		c.Lng += p.Lng
	}
	c.Lat /= float64(len(ps))
	c.Lng /= float64(len(ps))
	return c
}
