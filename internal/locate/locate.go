package locate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// MinAnchors is the smallest number of usable observations Trilaterate
// accepts.
const MinAnchors = 2

// ErrNotEnoughAnchors is returned when fewer than MinAnchors observations
// carry a distance.
var ErrNotEnoughAnchors = errors.New("not enough anchors")

// Point is a position on the floor plane, in millimetres.
type Point struct {
	X, Y float64
}

// Meters returns p scaled to metres.
func (p Point) Meters() (x, y float64) {
	return p.X / 1000, p.Y / 1000
}

// String returns the point in metres
func (p Point) String() string {
	x, y := p.Meters()
	return fmt.Sprintf("(%.2fm, %.2fm)", x, y)
}

// Observation is a measured distance to an anchor at a known position.
// A negative distance means the anchor has not been ranged yet.
type Observation struct {
	Anchor     Point
	DistanceMm float64
}

// Result is the outcome of a trilateration.
type Result struct {
	Position Point
	// RMSErrorMm is the root mean square of the range residuals at Position.
	RMSErrorMm float64
	Anchors    int
}

// Trilaterate finds the point whose distances to the anchors best match the
// observations in the least squares sense. Observations with a negative
// distance are ignored.
//
// The search starts from the centroid of the anchors, so two anchors give
// the solution on the side of the baseline the optimiser converges to.
func Trilaterate(observations []Observation) (Result, error) {
	usable := make([]Observation, 0, len(observations))
	for _, o := range observations {
		if o.DistanceMm >= 0 && !math.IsNaN(o.DistanceMm) && !math.IsInf(o.DistanceMm, 0) {
			usable = append(usable, o)
		}
	}
	if len(usable) < MinAnchors {
		return Result{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughAnchors, len(usable), MinAnchors)
	}

	var cx, cy float64
	for _, o := range usable {
		cx += o.Anchor.X
		cy += o.Anchor.Y
	}
	n := float64(len(usable))
	start := []float64{cx / n, cy / n}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			var sum float64
			for _, o := range usable {
				r := math.Hypot(p[0]-o.Anchor.X, p[1]-o.Anchor.Y) - o.DistanceMm
				sum += r * r
			}
			return sum
		},
		Grad: func(grad, p []float64) {
			grad[0], grad[1] = 0, 0
			for _, o := range usable {
				dx, dy := p[0]-o.Anchor.X, p[1]-o.Anchor.Y
				d := math.Hypot(dx, dy)
				if d == 0 {
					continue
				}
				r := d - o.DistanceMm
				grad[0] += 2 * r * dx / d
				grad[1] += 2 * r * dy / d
			}
		},
	}

	res, err := optimize.Minimize(problem, start, nil, &optimize.BFGS{})
	if err != nil && res == nil {
		return Result{}, fmt.Errorf("trilaterate: %w", err)
	}

	pos := Point{X: res.X[0], Y: res.X[1]}
	return Result{
		Position:   pos,
		RMSErrorMm: math.Sqrt(res.F / n),
		Anchors:    len(usable),
	}, nil
}
