package georgb

import (
	"fmt"
	"image"
)

// NumericKind is the numeric family of a raster sample.
type NumericKind uint8

const (
	Unsigned NumericKind = iota + 1
	Signed
	Float
)

// ElementType describes the storage type of a band's samples.
type ElementType struct {
	Kind NumericKind
	Bits int
}

// Common element types.
var (
	Uint8   = ElementType{Unsigned, 8}
	Int8    = ElementType{Signed, 8}
	Uint16  = ElementType{Unsigned, 16}
	Int16   = ElementType{Signed, 16}
	Uint32  = ElementType{Unsigned, 32}
	Int32   = ElementType{Signed, 32}
	Float32 = ElementType{Float, 32}
	Float64 = ElementType{Float, 64}
)

// IsFloat reports whether samples are IEEE floating point.
func (t ElementType) IsFloat() bool {
	return t.Kind == Float
}

// BytesPerSample returns the storage size of one sample.
func (t ElementType) BytesPerSample() int {
	return t.Bits / 8
}

func (t ElementType) String() string {
	switch t.Kind {
	case Unsigned:
		return fmt.Sprintf("uint%d", t.Bits)
	case Signed:
		return fmt.Sprintf("int%d", t.Bits)
	case Float:
		return fmt.Sprintf("float%d", t.Bits)
	default:
		return "unknown"
	}
}

// NoData is an optional no-data sentinel.
type NoData struct {
	Value float64
	Set   bool
}

// BandSelection holds the 1-indexed source bands mapped to red, green and
// blue. A band may appear in more than one channel.
type BandSelection struct {
	Red, Green, Blue int
}

func (s BandSelection) indices() [3]int {
	return [3]int{s.Red, s.Green, s.Blue}
}

var channelNames = [3]string{"Red", "Green", "Blue"}

// SampleBuffer holds the raw samples of the three selected bands in
// (red, green, blue) order. Each band is row-major, Width*Height long.
type SampleBuffer struct {
	Width  int
	Height int
	Type   ElementType
	Bands  [3][]float64
}

// ValidityMask marks the usable samples of a SampleBuffer.
type ValidityMask struct {
	Width  int
	Height int
	Bands  [3][]bool
}

// RGBBuffer is the 8-bit conversion output, one plane per channel.
type RGBBuffer struct {
	Width  int
	Height int
	Bands  [3][]uint8
}

// NewRGBBuffer allocates a zeroed buffer.
func NewRGBBuffer(width, height int) *RGBBuffer {
	rgb := &RGBBuffer{Width: width, Height: height}
	for c := range rgb.Bands {
		rgb.Bands[c] = make([]uint8, width*height)
	}
	return rgb
}

// Interleaved returns the pixels as RGBRGB... bytes, row by row.
func (b *RGBBuffer) Interleaved() []byte {
	n := b.Width * b.Height
	out := make([]byte, n*3)
	for i := 0; i < n; i++ {
		out[i*3] = b.Bands[0][i]
		out[i*3+1] = b.Bands[1][i]
		out[i*3+2] = b.Bands[2][i]
	}
	return out
}

// Image returns an opaque NRGBA copy of the buffer.
func (b *RGBBuffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i := 0; i < b.Width*b.Height; i++ {
		p := img.Pix[i*4 : i*4+4 : i*4+4]
		p[0] = b.Bands[0][i]
		p[1] = b.Bands[1][i]
		p[2] = b.Bands[2][i]
		p[3] = 0xff
	}
	return img
}
