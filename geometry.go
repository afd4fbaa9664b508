package georgb

import (
	"github.com/paulmach/orb"
)

// Apply converts pixel coordinates to a model-space point.
func (g Georeference) Apply(col, row float64) orb.Point {
	return orb.Point{
		g.PixelWidth*col + g.RowRotation*row + g.OriginX,
		g.ColumnRotation*col + g.PixelHeight*row + g.OriginY,
	}
}

// corners returns the outer corners of a width x height raster, clockwise
// from top-left.
func (g Georeference) corners(width, height int) [4]orb.Point {
	w, h := float64(width), float64(height)
	return [4]orb.Point{
		g.Apply(0, 0),
		g.Apply(w, 0),
		g.Apply(w, h),
		g.Apply(0, h),
	}
}

// Bounds returns the model-space bounding box of a width x height raster.
func (g Georeference) Bounds(width, height int) orb.Bound {
	if width <= 0 || height <= 0 {
		return orb.Bound{}
	}

	c := g.corners(width, height)
	b := orb.Bound{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		b = b.Extend(p)
	}
	return b
}

// Footprint returns the raster outline as a closed polygon. Unlike Bounds it
// follows rotated grids exactly.
func (g Georeference) Footprint(width, height int) orb.Polygon {
	if width <= 0 || height <= 0 {
		return orb.Polygon{}
	}

	c := g.corners(width, height)
	ring := orb.Ring{c[0], c[1], c[2], c[3], c[0]}
	if ring.Orientation() != orb.CCW {
		ring.Reverse()
	}
	return orb.Polygon{ring}
}
