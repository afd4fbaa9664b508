package georgb

// Georeference is the affine mapping from pixel/line to model coordinates,
// with fields in world-file order:
//
//	x = PixelWidth*col + RowRotation*row + OriginX
//	y = ColumnRotation*col + PixelHeight*row + OriginY
//
// PixelHeight is negative for north-up images.
type Georeference struct {
	PixelWidth     float64
	RowRotation    float64
	ColumnRotation float64
	PixelHeight    float64
	OriginX        float64
	OriginY        float64
}

// IdentityGeoreference maps pixel (col, row) to model (col, row).
var IdentityGeoreference = Georeference{PixelWidth: 1, PixelHeight: 1}

// Coefficients returns the six values in world-file order.
func (g Georeference) Coefficients() [6]float64 {
	return [6]float64{g.PixelWidth, g.RowRotation, g.ColumnRotation, g.PixelHeight, g.OriginX, g.OriginY}
}

// Rotated reports whether either rotation term is non-zero.
func (g Georeference) Rotated() bool {
	return g.RowRotation != 0 || g.ColumnRotation != 0
}

// DeriveGeoreference projects the source geotransform. Sources without one
// get IdentityGeoreference.
func DeriveGeoreference(md Metadata) Georeference {
	if md.Georeference == nil {
		return IdentityGeoreference
	}
	return *md.Georeference
}
