package georgb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// OutputMetadata is the georeferencing written alongside the RGB pixels.
type OutputMetadata struct {
	Georeference *Georeference    // nil writes no transform
	GeoKeys      *GeoKeyDirectory // source keys, copied to the output
}

// outputStripBytes is the target uncompressed size of one output strip.
const outputStripBytes = 64 * 1024

// WriteGeoTIFF encodes rgb as a 3-band, 8-bit, LZW compressed RGB GeoTIFF.
// No nodata tag is written.
func WriteGeoTIFF(w io.Writer, rgb *RGBBuffer, md OutputMetadata) error {
	if rgb == nil || rgb.Width <= 0 || rgb.Height <= 0 {
		return fmt.Errorf("%w: empty image", ErrOutputWrite)
	}
	width, height := rgb.Width, rgb.Height

	rowBytes := width * 3
	rowsPerStrip := min(max(1, outputStripBytes/rowBytes), height)
	strips := make([][]byte, (height+rowsPerStrip-1)/rowsPerStrip)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range strips {
		i := i
		g.Go(func() error {
			y0 := i * rowsPerStrip
			y1 := min(y0+rowsPerStrip, height)
			raw := GetBuffer((y1 - y0) * rowBytes)
			defer PutBuffer(raw)
			for y := y0; y < y1; y++ {
				row := raw[(y-y0)*rowBytes:]
				for x := 0; x < width; x++ {
					p := y*width + x
					row[x*3] = rgb.Bands[0][p]
					row[x*3+1] = rgb.Bands[1][p]
					row[x*3+2] = rgb.Bands[2][p]
				}
			}
			strips[i] = lzwEncode(raw)
			return nil
		})
	}
	_ = g.Wait() // strip encoding cannot fail

	b := newTIFFBuilder(binary.LittleEndian)
	b.longs(TagImageWidth, uint32(width))
	b.longs(TagImageLength, uint32(height))
	b.shorts(TagBitsPerSample, 8, 8, 8)
	b.shorts(TagCompression, CompressionLZW)
	b.shorts(TagPhotometricInterpretation, 2) // RGB
	b.shorts(TagSamplesPerPixel, 3)
	b.longs(TagRowsPerStrip, uint32(rowsPerStrip))
	b.shorts(TagPlanarConfiguration, planarChunky)
	b.shorts(TagSampleFormat, 1, 1, 1)
	b.chunks(TagStripOffsets, TagStripByteCounts, strips)

	if geo := md.Georeference; geo != nil {
		if geo.Rotated() {
			b.doubles(TagModelTransformation,
				geo.PixelWidth, geo.RowRotation, 0, geo.OriginX,
				geo.ColumnRotation, geo.PixelHeight, 0, geo.OriginY,
				0, 0, 0, 0,
				0, 0, 0, 1)
		} else {
			b.doubles(TagModelPixelScale, geo.PixelWidth, -geo.PixelHeight, 0)
			b.doubles(TagModelTiepoint, 0, 0, 0, geo.OriginX, geo.OriginY, 0)
		}
	}
	if keys := md.GeoKeys.withShort(GTRasterTypeGeoKey, GTRasterTypePixelIsArea); keys != nil {
		b.shorts(TagGeoKeyDirectory, keys.Directory...)
		if len(keys.Doubles) > 0 {
			b.doubles(TagGeoDoubleParams, keys.Doubles...)
		}
		if keys.ASCII != "" {
			b.ascii(TagGeoAsciiParams, keys.ASCII)
		}
	}

	if err := b.writeTo(w); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	return nil
}

// tiffEntry is an IFD entry with its value already encoded.
type tiffEntry struct {
	tag   uint16
	typ   FieldType
	count uint32
	data  []byte
}

// tiffBuilder assembles a single-image classic TIFF. The file is laid out as
// header, chunk data, out-of-line tag values, then the IFD.
type tiffBuilder struct {
	order   binary.ByteOrder
	entries []tiffEntry

	chunkData             [][]byte
	offsetsTag, countsTag uint16
}

func newTIFFBuilder(order binary.ByteOrder) *tiffBuilder {
	return &tiffBuilder{order: order}
}

func (b *tiffBuilder) add(tag uint16, typ FieldType, count int, data []byte) {
	for i := range b.entries {
		if b.entries[i].tag == tag {
			b.entries[i] = tiffEntry{tag, typ, uint32(count), data}
			return
		}
	}
	b.entries = append(b.entries, tiffEntry{tag, typ, uint32(count), data})
}

func (b *tiffBuilder) shorts(tag uint16, vals ...uint16) {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		b.order.PutUint16(data[2*i:], v)
	}
	b.add(tag, FTShort, len(vals), data)
}

func (b *tiffBuilder) longs(tag uint16, vals ...uint32) {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		b.order.PutUint32(data[4*i:], v)
	}
	b.add(tag, FTLong, len(vals), data)
}

func (b *tiffBuilder) doubles(tag uint16, vals ...float64) {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		b.order.PutUint64(data[8*i:], math.Float64bits(v))
	}
	b.add(tag, FTDouble, len(vals), data)
}

func (b *tiffBuilder) ascii(tag uint16, s string) {
	data := append([]byte(s), 0)
	b.add(tag, FTASCII, len(data), data)
}

// chunks sets the strip or tile payloads. Their offsets and byte counts are
// filled in by writeTo.
func (b *tiffBuilder) chunks(offsetsTag, countsTag uint16, data [][]byte) {
	b.offsetsTag, b.countsTag = offsetsTag, countsTag
	b.chunkData = data
}

// errTIFFTooLarge is returned when the file would need offsets past 4 GiB,
// which only BigTIFF can express.
var errTIFFTooLarge = errors.New("image exceeds the 4 GiB classic TIFF limit")

func (b *tiffBuilder) writeTo(w io.Writer) error {
	// Chunks follow the 8-byte header, each starting on a word boundary.
	pos := uint64(8)
	if len(b.chunkData) > 0 {
		offsets := make([]uint32, len(b.chunkData))
		counts := make([]uint32, len(b.chunkData))
		for i, c := range b.chunkData {
			if pos+uint64(len(c)) > math.MaxUint32 {
				return errTIFFTooLarge
			}
			offsets[i] = uint32(pos)
			counts[i] = uint32(len(c))
			pos += uint64(len(c))
			pos += pos & 1
		}
		b.longs(b.offsetsTag, offsets...)
		b.longs(b.countsTag, counts...)
	}

	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].tag < b.entries[j].tag })

	valueOffsets := make([]uint32, len(b.entries))
	for i, e := range b.entries {
		if len(e.data) > 4 {
			valueOffsets[i] = uint32(pos)
			pos += uint64(len(e.data))
			pos += pos & 1
		}
	}
	// entry count, 12-byte entries, next IFD offset
	if pos+2+12*uint64(len(b.entries))+4 > math.MaxUint32 {
		return errTIFFTooLarge
	}
	ifdOffset := uint32(pos)

	bw := bufio.NewWriter(w)
	var scratch [12]byte

	if b.order == binary.BigEndian {
		copy(scratch[:2], "MM")
	} else {
		copy(scratch[:2], "II")
	}
	b.order.PutUint16(scratch[2:], tiffVersion)
	b.order.PutUint32(scratch[4:], ifdOffset)
	bw.Write(scratch[:8])

	for _, c := range b.chunkData {
		bw.Write(c)
		if len(c)&1 == 1 {
			bw.WriteByte(0)
		}
	}
	for _, e := range b.entries {
		if len(e.data) > 4 {
			bw.Write(e.data)
			if len(e.data)&1 == 1 {
				bw.WriteByte(0)
			}
		}
	}

	b.order.PutUint16(scratch[:2], uint16(len(b.entries)))
	bw.Write(scratch[:2])
	for i, e := range b.entries {
		clear(scratch[:])
		b.order.PutUint16(scratch[0:], e.tag)
		b.order.PutUint16(scratch[2:], uint16(e.typ))
		b.order.PutUint32(scratch[4:], e.count)
		if len(e.data) > 4 {
			b.order.PutUint32(scratch[8:], valueOffsets[i])
		} else {
			copy(scratch[8:], e.data)
		}
		bw.Write(scratch[:])
	}
	b.order.PutUint32(scratch[:4], 0) // no next IFD
	bw.Write(scratch[:4])

	return bw.Flush()
}
