package georgb

import (
	"gonum.org/v1/gonum/stat"
)

// ChannelStats summarises the valid samples of one selected band.
type ChannelStats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// ComputeStats returns per-channel statistics over valid samples. A channel
// with no valid sample has zero stats.
func ComputeStats(samples *SampleBuffer, mask *ValidityMask) [3]ChannelStats {
	var out [3]ChannelStats
	for c, band := range samples.Bands {
		valid := make([]float64, 0, len(band))
		for i, v := range band {
			if mask.Bands[c][i] {
				valid = append(valid, v)
			}
		}
		if len(valid) == 0 {
			continue
		}

		s := ChannelStats{Count: len(valid), Min: valid[0], Max: valid[0]}
		for _, v := range valid[1:] {
			s.Min = min(s.Min, v)
			s.Max = max(s.Max, v)
		}
		s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
		if len(valid) == 1 {
			s.StdDev = 0
		}
		out[c] = s
	}
	return out
}
