package georgb

import (
	"math"
	"sync"
)

// Scale maps valid samples linearly from the domain onto 0-255, clipping
// values outside the domain. Masked samples and every sample of a degenerate
// domain become 0.
func Scale(samples *SampleBuffer, mask *ValidityMask, domain Domain) *RGBBuffer {
	rgb := NewRGBBuffer(samples.Width, samples.Height)
	if domain.Degenerate() {
		return rgb
	}

	span := domain.High - domain.Low

	// Channels only share the read-only domain, so each gets its own goroutine.
	var wg sync.WaitGroup
	for c := range samples.Bands {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			src, valid, dst := samples.Bands[c], mask.Bands[c], rgb.Bands[c]
			for i, v := range src {
				if valid[i] {
					dst[i] = toByte((v - domain.Low) / span * 255)
				}
			}
		}(c)
	}
	wg.Wait()

	return rgb
}

// toByte rounds and clips a scaled value. NaN maps to 0.
func toByte(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v >= 255:
		return 255
	case v > 0:
		return uint8(v)
	default:
		return 0
	}
}
