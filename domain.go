package georgb

import "fmt"

// Domain is the input value range mapped onto [0, 255].
type Domain struct {
	Low  float64
	High float64
}

// Degenerate reports whether the domain collapses to a single value.
func (d Domain) Degenerate() bool {
	return d.Low == d.High
}

func (d Domain) String() string {
	return fmt.Sprintf("[%g, %g]", d.Low, d.High)
}

// fallbackDomain is used when no sample is valid.
var fallbackDomain = Domain{Low: 0, High: 1}

// DomainSpec is a caller-supplied scaling range. Leave both bounds nil for
// an automatic range; set both for an explicit one.
type DomainSpec struct {
	Min *float64
	Max *float64
}

// ExplicitDomain builds a DomainSpec with both bounds set.
func ExplicitDomain(low, high float64) DomainSpec {
	return DomainSpec{Min: &low, Max: &high}
}

// Resolve returns the explicit domain, nil for automatic scaling, or
// ErrInvalidDomainSpecification when only one bound is set.
func (s DomainSpec) Resolve() (*Domain, error) {
	switch {
	case s.Min == nil && s.Max == nil:
		return nil, nil
	case s.Min == nil || s.Max == nil:
		return nil, ErrInvalidDomainSpecification
	default:
		return &Domain{Low: *s.Min, High: *s.Max}, nil
	}
}

// EstimateDomain returns explicit unchanged when it is non-nil. Otherwise it
// computes one min/max over the valid samples of all three bands together,
// so the channels keep their relative brightness.
func EstimateDomain(samples *SampleBuffer, mask *ValidityMask, explicit *Domain) Domain {
	if explicit != nil {
		return *explicit
	}

	var d Domain
	found := false
	for c, band := range samples.Bands {
		valid := mask.Bands[c]
		for i, v := range band {
			if !valid[i] {
				continue
			}
			if !found {
				d = Domain{Low: v, High: v}
				found = true
				continue
			}
			if v < d.Low {
				d.Low = v
			}
			if v > d.High {
				d.High = v
			}
		}
	}

	if !found {
		return fallbackDomain
	}
	return d
}

// checkWithin fails with ErrSampleOutOfDomain on the first valid sample
// outside d.
func checkWithin(samples *SampleBuffer, mask *ValidityMask, d Domain) error {
	lo, hi := d.Low, d.High
	if lo > hi {
		lo, hi = hi, lo
	}
	for c, band := range samples.Bands {
		valid := mask.Bands[c]
		for i, v := range band {
			if valid[i] && (v < lo || v > hi) {
				return fmt.Errorf("%w: %s channel value %g at pixel (%d, %d) outside %s",
					ErrSampleOutOfDomain, channelNames[c], v, i%samples.Width, i/samples.Width, d)
			}
		}
	}
	return nil
}
