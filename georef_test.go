package georgb

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
)

func TestDeriveGeoreference(t *testing.T) {
	assert.Equal(t, Georeference{PixelWidth: 1, PixelHeight: 1}, DeriveGeoreference(Metadata{}))
	assert.Equal(t, [6]float64{1, 0, 0, 1, 0, 0}, DeriveGeoreference(Metadata{}).Coefficients())

	g := &Georeference{PixelWidth: 30, RowRotation: 1, ColumnRotation: 2, PixelHeight: -30, OriginX: 399960, OriginY: 4800000}
	got := DeriveGeoreference(Metadata{Georeference: g})
	assert.Equal(t, *g, got)
	assert.Equal(t, [6]float64{30, 1, 2, -30, 399960, 4800000}, got.Coefficients())
	assert.True(t, got.Rotated())
	assert.False(t, utmGeoreference().Rotated())
}

func TestGeoreferenceApply(t *testing.T) {
	g := utmGeoreference()
	assert.Equal(t, orb.Point{500000, 4649800}, g.Apply(0, 0))
	assert.Equal(t, orb.Point{500070, 4649750}, g.Apply(7, 5))

	r := Georeference{PixelWidth: 2, RowRotation: 1, ColumnRotation: 0.5, PixelHeight: -2, OriginX: 10, OriginY: 20}
	assert.Equal(t, orb.Point{10 + 2*3 + 1*4, 20 + 0.5*3 - 2*4}, r.Apply(3, 4))
}

func TestGeoreferenceBounds(t *testing.T) {
	b := utmGeoreference().Bounds(7, 5)
	assert.Equal(t, orb.Bound{Min: orb.Point{500000, 4649750}, Max: orb.Point{500070, 4649800}}, b)

	// South-up grids still give an ordered box.
	up := Georeference{PixelWidth: 1, PixelHeight: 1}
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 3}}, up.Bounds(4, 3))

	assert.Equal(t, orb.Bound{}, up.Bounds(0, 3))
}

func TestGeoreferenceFootprint(t *testing.T) {
	g := Georeference{PixelWidth: 1, RowRotation: 1, ColumnRotation: 1, PixelHeight: -1}
	poly := g.Footprint(2, 2)
	assert.Len(t, poly, 1)

	ring := poly[0]
	assert.Len(t, ring, 5)
	assert.True(t, ring.Closed())
	assert.Equal(t, orb.CCW, ring.Orientation())

	// A 45 degree grid of 2x2 pixels of side sqrt(2) covers area 8.
	assert.InDelta(t, 8.0, math.Abs(planar.Area(poly)), 1e-9)

	// The bound of the rotated footprint matches Bounds.
	assert.Equal(t, g.Bounds(2, 2), poly.Bound())

	assert.Empty(t, g.Footprint(0, 0))
}
