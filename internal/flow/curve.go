package flow

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	curveSteps     = 100
	curveElevation = 0.15
)

// Curve samples a quadratic Bézier arc from start to end. The control point
// sits at the midpoint lifted toward increasing latitude by 0.15 times the
// straight-line distance, so arc height scales with route length. The result
// always has curveSteps+1 points and begins and ends exactly on the inputs.
func Curve(start, end orb.Point) orb.LineString {
	lift := curveElevation * planar.Distance(start, end)
	control := orb.Point{
		(start[0] + end[0]) / 2,
		(start[1]+end[1])/2 + lift,
	}

	path := make(orb.LineString, curveSteps+1)
	path[0] = start
	for i := 1; i < curveSteps; i++ {
		t := float64(i) / curveSteps
		path[i] = bezier(start, control, end, t)
	}
	path[curveSteps] = end
	return path
}

// Straight returns the two-point path from start to end.
func Straight(start, end orb.Point) orb.LineString {
	return orb.LineString{start, end}
}

// bezier evaluates the quadratic curve as offsets from start so that a
// zero-length route stays exactly on its endpoint.
func bezier(start, control, end orb.Point, t float64) orb.Point {
	a := 2 * (1 - t) * t
	b := t * t
	return orb.Point{
		start[0] + a*(control[0]-start[0]) + b*(end[0]-start[0]),
		start[1] + a*(control[1]-start[1]) + b*(end[1]-start[1]),
	}
}
