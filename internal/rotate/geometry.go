package rotate

import "math"

// ComputeBounds returns the tight axis-aligned canvas that contains the
// source rectangle after rotating it about its center by angleDeg degrees
// (counter-clockwise positive). Each output dimension is the ceiling of the
// rotated extent, floored at 1 so the canvas is never degenerate.
//
// The formula is periodic in the angle and exact at multiples of 90 degrees,
// where the output is the (possibly axis-swapped) input size.
func ComputeBounds(width, height int, angleDeg float64) (outW, outH int) {
	sin, cos := SinCosDeg(angleDeg)

	w := float64(width)
	h := float64(height)

	extW := w*math.Abs(cos) + h*math.Abs(sin)
	extH := w*math.Abs(sin) + h*math.Abs(cos)

	outW = int(math.Ceil(extW))
	outH = int(math.Ceil(extH))
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}

// Center returns the geometric center of a width x height image in
// continuous coordinates. Rotations pivot about this point.
func Center(width, height int) Point {
	return Point{X: float64(width) / 2, Y: float64(height) / 2}
}

// PlacementOffset returns the top-left offset at which a srcW x srcH source
// sits centered inside a dstW x dstH canvas: destination center minus source
// center per axis, clamped to be non-negative. Content placed into a canvas
// smaller than the source on some axis is pinned to that edge.
func PlacementOffset(srcW, srcH, dstW, dstH int) (x, y int) {
	x = dstW/2 - srcW/2
	y = dstH/2 - srcH/2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}

// SinCosDeg returns sin and cos of an angle given in degrees. The angle is
// normalized into [0, 360) first, and multiples of 90 degrees return exact
// unit values so quarter-turn rotations stay lossless on the pixel grid.
func SinCosDeg(deg float64) (sin, cos float64) {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	return math.Sincos(d * math.Pi / 180)
}
