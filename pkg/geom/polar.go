package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// RectilinearCoordinates converts 2D polar coordinates to Cartesian points,
// pairing radii[i] with angles[i] (radians).
func RectilinearCoordinates(radii, angles []float64) ([]r2.Vec, error) {
	if len(radii) != len(angles) {
		return nil, fmt.Errorf("%w: %d radii, %d angles", ErrLengthMismatch, len(radii), len(angles))
	}
	pts := make([]r2.Vec, len(radii))
	for i, r := range radii {
		s, c := math.Sincos(angles[i])
		pts[i] = r2.Vec{X: r * c, Y: r * s}
	}
	return pts, nil
}
