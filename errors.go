package georgb

import (
	"errors"
	"fmt"
)

// Error kinds returned by the conversion pipeline. Callers match them with
// errors.Is; the wrapped error carries the originating context.
var (
	ErrSourceOpen                 = errors.New("cannot open raster source")
	ErrBandRead                   = errors.New("cannot read band")
	ErrBandIndexOutOfRange        = errors.New("band index out of range")
	ErrInvalidDomainSpecification = errors.New("both min and max must be specified together")
	ErrOutputWrite                = errors.New("cannot write output")
	ErrSampleOutOfDomain          = errors.New("sample outside explicit scaling domain")
	ErrUnsupported                = errors.New("unsupported raster layout")
)

// BandIndexError reports a requested band that the source does not have.
type BandIndexError struct {
	Channel   string // "Red", "Green" or "Blue"
	Index     int
	BandCount int
}

func (e *BandIndexError) Error() string {
	return fmt.Sprintf("%s band index %d is out of range. File has %d bands.", e.Channel, e.Index, e.BandCount)
}

// Is makes errors.Is(err, ErrBandIndexOutOfRange) true for a *BandIndexError.
func (e *BandIndexError) Is(target error) bool {
	return target == ErrBandIndexOutOfRange
}
