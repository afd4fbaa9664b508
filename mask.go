package georgb

import "math"

// ComputeValidity marks which samples take part in scaling.
//
// With a sentinel, a sample is valid unless it equals the sentinel (a NaN
// sentinel matches NaN samples). Without one, float samples are valid unless
// NaN and integer samples are always valid. NaN float samples are never valid.
// The sentinel is compared at the samples' precision, so a float32 raster
// matches "0.1" as float32(0.1).
func ComputeValidity(samples *SampleBuffer, nodata NoData) *ValidityMask {
	mask := &ValidityMask{Width: samples.Width, Height: samples.Height}
	if nodata.Set && samples.Type == Float32 {
		nodata.Value = float64(float32(nodata.Value))
	}

	for c, band := range samples.Bands {
		valid := make([]bool, len(band))
		switch {
		case nodata.Set && math.IsNaN(nodata.Value):
			for i, v := range band {
				valid[i] = !math.IsNaN(v)
			}
		case nodata.Set && samples.Type.IsFloat():
			for i, v := range band {
				valid[i] = v != nodata.Value && !math.IsNaN(v)
			}
		case nodata.Set:
			for i, v := range band {
				valid[i] = v != nodata.Value
			}
		case samples.Type.IsFloat():
			for i, v := range band {
				valid[i] = !math.IsNaN(v)
			}
		default:
			for i := range valid {
				valid[i] = true
			}
		}
		mask.Bands[c] = valid
	}

	return mask
}

// Any reports whether at least one sample is valid.
func (m *ValidityMask) Any() bool {
	for _, band := range m.Bands {
		for _, ok := range band {
			if ok {
				return true
			}
		}
	}
	return false
}
