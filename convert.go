package georgb

import (
	"fmt"
	"io"
	"log"
)

// Metadata describes a raster source.
type Metadata struct {
	BandCount    int
	Width        int
	Height       int
	ElementType  ElementType
	NoData       NoData
	Georeference *Georeference // nil when the source is not georeferenced
	CRS          string        // e.g. "EPSG:32633", empty when unknown
	GeoKeys      *GeoKeyDirectory
}

// RasterSource is a read-only multi-band raster.
type RasterSource interface {
	Metadata() Metadata
	// ReadBand returns the 1-indexed band as Width*Height row-major samples.
	ReadBand(index int) ([]float64, error)
}

// Result is the output of one conversion.
type Result struct {
	RGB          *RGBBuffer
	Georeference Georeference
	Domain       Domain
	Stats        [3]ChannelStats
}

type convertConfig struct {
	strict bool
	logger *log.Logger
}

// ConvertOption configures Convert.
type ConvertOption func(*convertConfig)

// WithStrictDomain makes an explicit domain fail with ErrSampleOutOfDomain
// when a valid sample falls outside it, instead of clipping.
func WithStrictDomain() ConvertOption {
	return func(c *convertConfig) { c.strict = true }
}

// WithLogger sends progress lines to l.
func WithLogger(l *log.Logger) ConvertOption {
	return func(c *convertConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Convert reads the three selected bands of src and compresses them into an
// 8-bit RGB buffer. The domain spec and band indices are validated before
// any band is read.
func Convert(src RasterSource, sel BandSelection, spec DomainSpec, opts ...ConvertOption) (*Result, error) {
	cfg := convertConfig{logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(&cfg)
	}

	explicit, err := spec.Resolve()
	if err != nil {
		return nil, err
	}

	md := src.Metadata()
	indices := sel.indices()
	for c, idx := range indices {
		if idx < 1 || idx > md.BandCount {
			return nil, &BandIndexError{Channel: channelNames[c], Index: idx, BandCount: md.BandCount}
		}
	}

	cfg.logger.Printf("Reading bands %d, %d, %d", sel.Red, sel.Green, sel.Blue)
	samples := &SampleBuffer{Width: md.Width, Height: md.Height, Type: md.ElementType}
	read := make(map[int][]float64, 3)
	for c, idx := range indices {
		data, ok := read[idx]
		if !ok {
			data, err = src.ReadBand(idx)
			if err != nil {
				return nil, fmt.Errorf("%w %d: %w", ErrBandRead, idx, err)
			}
			if len(data) != md.Width*md.Height {
				return nil, fmt.Errorf("%w %d: got %d samples, expected %d", ErrBandRead, idx, len(data), md.Width*md.Height)
			}
			read[idx] = data
		}
		samples.Bands[c] = data
	}

	mask := ComputeValidity(samples, md.NoData)
	if !mask.Any() {
		cfg.logger.Printf("No valid samples in the selected bands")
	}
	domain := EstimateDomain(samples, mask, explicit)
	if explicit != nil && cfg.strict {
		if err := checkWithin(samples, mask, domain); err != nil {
			return nil, err
		}
	}
	cfg.logger.Printf("Scaling domain %s", domain)

	return &Result{
		RGB:          Scale(samples, mask, domain),
		Georeference: DeriveGeoreference(md),
		Domain:       domain,
		Stats:        ComputeStats(samples, mask),
	}, nil
}
