package georgb

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// rasterFixture describes a synthetic GeoTIFF built in memory.
type rasterFixture struct {
	order         binary.ByteOrder
	width, height int
	bands         int
	elem          ElementType
	planar        int
	compression   uint16
	predictor     uint16
	tileSize      int // 0 for strips
	rowsPerStrip  int // 0 for a single strip
	nodata        string
	georef        *Georeference
	keys          *GeoKeyDirectory
	value         func(band, x, y int) float64 // band is 0-indexed
}

// defaultFixture is a 4-band little-endian uint16 strip image.
func defaultFixture() rasterFixture {
	return rasterFixture{
		order:        binary.LittleEndian,
		width:        7,
		height:       5,
		bands:        4,
		elem:         Uint16,
		planar:       planarChunky,
		compression:  CompressionNone,
		predictor:    predictorNone,
		rowsPerStrip: 2,
	}
}

// fixtureValue fits every supported element type for images up to 8x8.
func fixtureValue(elem ElementType) func(band, x, y int) float64 {
	return func(band, x, y int) float64 {
		v := float64(band*50 + y*8 + x)
		switch elem.Kind {
		case Signed:
			v -= 60
		case Float:
			v = v/4 - 10.5
		}
		return v
	}
}

func (f rasterFixture) sample(band, x, y int) float64 {
	if f.value != nil {
		return f.value(band, x, y)
	}
	return fixtureValue(f.elem)(band, x, y)
}

// expectedBand returns the row-major samples of the 0-indexed band.
func (f rasterFixture) expectedBand(band int) []float64 {
	out := make([]float64, f.width*f.height)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			out[y*f.width+x] = f.sample(band, x, y)
		}
	}
	return out
}

func putSample(b []byte, elem ElementType, order binary.ByteOrder, v float64) {
	switch elem {
	case Uint8:
		b[0] = uint8(v)
	case Int8:
		b[0] = uint8(int8(v))
	case Uint16:
		order.PutUint16(b, uint16(v))
	case Int16:
		order.PutUint16(b, uint16(int16(v)))
	case Uint32:
		order.PutUint32(b, uint32(v))
	case Int32:
		order.PutUint32(b, uint32(int32(v)))
	case Float32:
		order.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		order.PutUint64(b, math.Float64bits(v))
	}
}

// encodeChunk lays out one strip or tile, applies the predictor and
// compresses it.
func (f rasterFixture) encodeChunk(t testing.TB, x0, y0, cols, rows, plane int) []byte {
	t.Helper()
	bps := f.elem.BytesPerSample()
	spp, first := f.bands, 0
	if f.planar == planarSeparate {
		spp, first = 1, plane
	}
	// The floating point predictor stores byte planes most significant first.
	order := f.order
	if f.predictor == predictorFloat {
		order = binary.BigEndian
	}

	rowSamples := cols * spp
	data := make([]byte, rows*rowSamples*bps)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := x0+c, y0+r
			if x >= f.width || y >= f.height {
				continue // tile padding
			}
			for s := 0; s < spp; s++ {
				off := ((r*cols+c)*spp + s) * bps
				putSample(data[off:off+bps], f.elem, order, f.sample(first+s, x, y))
			}
		}
	}

	switch f.predictor {
	case predictorHorizontal:
		applyHorizontal(data, rowSamples, spp, bps, f.order)
	case predictorFloat:
		data = applyFloatPredictor(data, rowSamples, spp, bps)
	}

	switch f.compression {
	case CompressionLZW:
		return lzwEncode(data)
	case CompressionDeflate, CompressionAdobeDeflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	default:
		return data
	}
}

func applyHorizontal(data []byte, rowSamples, stride, bps int, order binary.ByteOrder) {
	rowBytes := rowSamples * bps
	for start := 0; start < len(data); start += rowBytes {
		row := data[start : start+rowBytes]
		for i := rowSamples - 1; i >= stride; i-- {
			switch bps {
			case 1:
				row[i] -= row[i-stride]
			case 2:
				order.PutUint16(row[i*2:], order.Uint16(row[i*2:])-order.Uint16(row[(i-stride)*2:]))
			case 4:
				order.PutUint32(row[i*4:], order.Uint32(row[i*4:])-order.Uint32(row[(i-stride)*4:]))
			}
		}
	}
}

// applyFloatPredictor expects big-endian samples.
func applyFloatPredictor(data []byte, rowSamples, stride, bps int) []byte {
	rowBytes := rowSamples * bps
	out := make([]byte, len(data))
	for start := 0; start < len(data); start += rowBytes {
		row := data[start : start+rowBytes]
		dst := out[start : start+rowBytes]
		for s := 0; s < rowSamples; s++ {
			for b := 0; b < bps; b++ {
				dst[b*rowSamples+s] = row[s*bps+b]
			}
		}
		for i := rowBytes - 1; i >= stride; i-- {
			dst[i] -= dst[i-stride]
		}
	}
	return out
}

// build encodes the fixture as a GeoTIFF.
func (f rasterFixture) build(t testing.TB) []byte {
	t.Helper()
	if f.order == nil {
		f.order = binary.LittleEndian
	}
	if f.planar == 0 {
		f.planar = planarChunky
	}

	planes := 1
	if f.planar == planarSeparate {
		planes = f.bands
	}

	var chunks [][]byte
	b := newTIFFBuilder(f.order)
	if f.tileSize > 0 {
		across := (f.width + f.tileSize - 1) / f.tileSize
		down := (f.height + f.tileSize - 1) / f.tileSize
		for p := 0; p < planes; p++ {
			for ty := 0; ty < down; ty++ {
				for tx := 0; tx < across; tx++ {
					chunks = append(chunks, f.encodeChunk(t, tx*f.tileSize, ty*f.tileSize, f.tileSize, f.tileSize, p))
				}
			}
		}
		b.longs(TagTileWidth, uint32(f.tileSize))
		b.longs(TagTileLength, uint32(f.tileSize))
		b.chunks(TagTileOffsets, TagTileByteCounts, chunks)
	} else {
		rps := f.rowsPerStrip
		if rps <= 0 {
			rps = f.height
		}
		for p := 0; p < planes; p++ {
			for y := 0; y < f.height; y += rps {
				chunks = append(chunks, f.encodeChunk(t, 0, y, f.width, min(rps, f.height-y), p))
			}
		}
		b.longs(TagRowsPerStrip, uint32(rps))
		b.chunks(TagStripOffsets, TagStripByteCounts, chunks)
	}

	bits := make([]uint16, f.bands)
	formats := make([]uint16, f.bands)
	for i := range bits {
		bits[i] = uint16(f.elem.Bits)
		formats[i] = map[NumericKind]uint16{Unsigned: 1, Signed: 2, Float: 3}[f.elem.Kind]
	}
	b.longs(TagImageWidth, uint32(f.width))
	b.longs(TagImageLength, uint32(f.height))
	b.shorts(TagBitsPerSample, bits...)
	b.shorts(TagSampleFormat, formats...)
	b.shorts(TagSamplesPerPixel, uint16(f.bands))
	b.shorts(TagPhotometricInterpretation, 1) // BlackIsZero
	b.shorts(TagPlanarConfiguration, uint16(f.planar))
	b.shorts(TagCompression, max(f.compression, CompressionNone))
	if f.predictor > predictorNone {
		b.shorts(TagPredictor, f.predictor)
	}

	if g := f.georef; g != nil {
		if g.Rotated() {
			b.doubles(TagModelTransformation,
				g.PixelWidth, g.RowRotation, 0, g.OriginX,
				g.ColumnRotation, g.PixelHeight, 0, g.OriginY,
				0, 0, 0, 0,
				0, 0, 0, 1)
		} else {
			b.doubles(TagModelPixelScale, g.PixelWidth, -g.PixelHeight, 0)
			b.doubles(TagModelTiepoint, 0, 0, 0, g.OriginX, g.OriginY, 0)
		}
	}
	if f.keys != nil {
		b.shorts(TagGeoKeyDirectory, f.keys.Directory...)
		if len(f.keys.Doubles) > 0 {
			b.doubles(TagGeoDoubleParams, f.keys.Doubles...)
		}
		if f.keys.ASCII != "" {
			b.ascii(TagGeoAsciiParams, f.keys.ASCII)
		}
	}
	if f.nodata != "" {
		b.ascii(TagGDALNoData, f.nodata)
	}

	var buf bytes.Buffer
	require.NoError(t, b.writeTo(&buf))
	return buf.Bytes()
}

// utmKeys is a projected GeoKey directory for WGS 84 / UTM zone 33N.
func utmKeys() *GeoKeyDirectory {
	return &GeoKeyDirectory{
		Directory: []uint16{
			1, 1, 0, 4,
			GTModelTypeGeoKey, 0, 1, GTModelTypeProjected,
			GTRasterTypeGeoKey, 0, 1, GTRasterTypePixelIsArea,
			GTCitationGeoKey, TagGeoAsciiParams, 22, 0,
			ProjectedCSTypeGeoKey, 0, 1, 32633,
		},
		ASCII: "WGS 84 / UTM zone 33N|",
	}
}

// utmGeoreference is a north-up 10 m grid.
func utmGeoreference() *Georeference {
	return &Georeference{PixelWidth: 10, PixelHeight: -10, OriginX: 500000, OriginY: 4649800}
}
