package georgb

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// TIFF constants
const (
	tiffMagicLE    = 0x4949 // "II" little-endian
	tiffMagicBE    = 0x4D4D // "MM" big-endian
	tiffVersion    = 42
	bigTIFFVersion = 43
)

// Baseline and extension tag IDs used by the reader and writer.
const (
	TagImageWidth                = 256
	TagImageLength               = 257
	TagBitsPerSample             = 258
	TagCompression               = 259
	TagPhotometricInterpretation = 262
	TagStripOffsets              = 273
	TagSamplesPerPixel           = 277
	TagRowsPerStrip              = 278
	TagStripByteCounts           = 279
	TagPlanarConfiguration       = 284
	TagPredictor                 = 317
	TagTileWidth                 = 322
	TagTileLength                = 323
	TagTileOffsets               = 324
	TagTileByteCounts            = 325
	TagSampleFormat              = 339
	TagGDALNoData                = 42113
)

// Compression types
const (
	CompressionNone         = 1
	CompressionLZW          = 5
	CompressionDeflate      = 8
	CompressionAdobeDeflate = 32946
	CompressionZSTD         = 50000
)

// FieldType is the TIFF type of a tag value.
type FieldType uint16

const (
	FTByte      FieldType = 1  // 8-bit unsigned integer
	FTASCII     FieldType = 2  // 8-bit ASCII
	FTShort     FieldType = 3  // 16-bit unsigned integer
	FTLong      FieldType = 4  // 32-bit unsigned integer
	FTRational  FieldType = 5  // Two longs: numerator, denominator
	FTSByte     FieldType = 6  // 8-bit signed integer
	FTUndefined FieldType = 7  // 8-bit undefined
	FTSShort    FieldType = 8  // 16-bit signed integer
	FTSLong     FieldType = 9  // 32-bit signed integer
	FTSRational FieldType = 10 // Two signed longs
	FTFloat     FieldType = 11 // 32-bit IEEE floating point
	FTDouble    FieldType = 12 // 64-bit IEEE floating point
)

// Size returns the size in bytes of one value of the type.
func (t FieldType) Size() int {
	switch t {
	case FTByte, FTASCII, FTSByte, FTUndefined:
		return 1
	case FTShort, FTSShort:
		return 2
	case FTLong, FTSLong, FTFloat:
		return 4
	case FTRational, FTSRational, FTDouble:
		return 8
	default:
		return 0
	}
}

// maxTagBytes bounds out-of-line tag values so a corrupt count cannot force
// a huge allocation.
const maxTagBytes = 256 << 20

// Tag is one IFD entry. Value holds []uint64, []int64, []float64 or string
// once loaded.
type Tag struct {
	ID     uint16
	Type   FieldType
	Count  uint32
	Offset uint32
	inline []byte
	Value  interface{}
}

// IFD is an Image File Directory.
type IFD struct {
	Tags      map[uint16]*Tag
	NextIFD   uint32
	ByteOrder binary.ByteOrder
}

// TIFFReader parses the IFD chain of a classic TIFF. Values stored outside
// the entry are read the first time they are asked for.
type TIFFReader struct {
	r         io.ReadSeeker
	byteOrder binary.ByteOrder
	ifds      []*IFD
}

// NewTIFFReader reads the header and every IFD entry of r.
func NewTIFFReader(r io.ReadSeeker) (*TIFFReader, error) {
	tr := &TIFFReader{r: r}

	header := make([]byte, 8)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to TIFF header: %w", err)
	}
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header: %w", err)
	}

	switch magic := binary.LittleEndian.Uint16(header[0:2]); magic {
	case tiffMagicLE:
		tr.byteOrder = binary.LittleEndian
	case tiffMagicBE:
		tr.byteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF magic: 0x%04x", magic)
	}

	switch version := tr.byteOrder.Uint16(header[2:4]); version {
	case tiffVersion:
	case bigTIFFVersion:
		return nil, fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return nil, fmt.Errorf("invalid TIFF version: %d", version)
	}

	seen := make(map[uint32]bool)
	for offset := tr.byteOrder.Uint32(header[4:8]); offset != 0; {
		if seen[offset] {
			return nil, fmt.Errorf("IFD loop at offset %d", offset)
		}
		seen[offset] = true

		ifd, err := tr.readIFD(offset)
		if err != nil {
			return nil, fmt.Errorf("failed to read IFD at %d: %w", offset, err)
		}
		tr.ifds = append(tr.ifds, ifd)
		offset = ifd.NextIFD
	}

	if len(tr.ifds) == 0 {
		return nil, fmt.Errorf("TIFF has no image directory")
	}
	return tr, nil
}

// readIFD reads the entry table at offset in one read. Inline values are
// decoded immediately.
func (tr *TIFFReader) readIFD(offset uint32) (*IFD, error) {
	if _, err := tr.r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to IFD: %w", err)
	}

	var countBuf [2]byte
	if _, err := io.ReadFull(tr.r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read tag count: %w", err)
	}
	tagCount := int(tr.byteOrder.Uint16(countBuf[:]))

	// entries (12 bytes each) + next IFD offset
	buf := make([]byte, tagCount*12+4)
	if _, err := io.ReadFull(tr.r, buf); err != nil {
		return nil, fmt.Errorf("failed to read IFD structure: %w", err)
	}

	ifd := &IFD{
		Tags:      make(map[uint16]*Tag, tagCount),
		ByteOrder: tr.byteOrder,
	}
	for i := 0; i < tagCount; i++ {
		entry := buf[i*12 : i*12+12]
		tag := &Tag{
			ID:     tr.byteOrder.Uint16(entry[0:2]),
			Type:   FieldType(tr.byteOrder.Uint16(entry[2:4])),
			Count:  tr.byteOrder.Uint32(entry[4:8]),
			Offset: tr.byteOrder.Uint32(entry[8:12]),
		}
		size := tag.Type.Size()
		if size == 0 {
			continue // unknown type, skip per TIFF 6.0
		}
		if uint64(size)*uint64(tag.Count) <= 4 {
			tag.inline = append([]byte(nil), entry[8:12]...)
			tag.Value = decodeTagValue(tag.Type, int(tag.Count), tr.byteOrder, tag.inline)
		}
		ifd.Tags[tag.ID] = tag
	}
	ifd.NextIFD = tr.byteOrder.Uint32(buf[tagCount*12:])

	return ifd, nil
}

// load reads an out-of-line tag value if it has not been read yet.
func (tr *TIFFReader) load(tag *Tag) error {
	if tag.Value != nil {
		return nil
	}

	n := uint64(tag.Type.Size()) * uint64(tag.Count)
	if n > maxTagBytes {
		return fmt.Errorf("tag %d value too large: %d bytes", tag.ID, n)
	}

	buf := make([]byte, n)
	if _, err := tr.r.Seek(int64(tag.Offset), io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to tag %d value: %w", tag.ID, err)
	}
	if _, err := io.ReadFull(tr.r, buf); err != nil {
		return fmt.Errorf("failed to read tag %d value: %w", tag.ID, err)
	}
	tag.Value = decodeTagValue(tag.Type, int(tag.Count), tr.byteOrder, buf)
	return nil
}

// decodeTagValue decodes count values of type t from buf.
func decodeTagValue(t FieldType, count int, order binary.ByteOrder, buf []byte) interface{} {
	switch t {
	case FTASCII:
		s := buf[:count]
		for len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return string(s)
	case FTByte, FTUndefined:
		out := make([]uint64, count)
		for i := range out {
			out[i] = uint64(buf[i])
		}
		return out
	case FTShort:
		out := make([]uint64, count)
		for i := range out {
			out[i] = uint64(order.Uint16(buf[i*2:]))
		}
		return out
	case FTLong:
		out := make([]uint64, count)
		for i := range out {
			out[i] = uint64(order.Uint32(buf[i*4:]))
		}
		return out
	case FTSByte:
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(int8(buf[i]))
		}
		return out
	case FTSShort:
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(int16(order.Uint16(buf[i*2:])))
		}
		return out
	case FTSLong:
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(int32(order.Uint32(buf[i*4:])))
		}
		return out
	case FTFloat:
		out := make([]float64, count)
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(buf[i*4:])))
		}
		return out
	case FTDouble:
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(buf[i*8:]))
		}
		return out
	case FTRational:
		out := make([]float64, count)
		for i := range out {
			num, den := order.Uint32(buf[i*8:]), order.Uint32(buf[i*8+4:])
			if den != 0 {
				out[i] = float64(num) / float64(den)
			}
		}
		return out
	case FTSRational:
		out := make([]float64, count)
		for i := range out {
			num, den := int32(order.Uint32(buf[i*8:])), int32(order.Uint32(buf[i*8+4:]))
			if den != 0 {
				out[i] = float64(num) / float64(den)
			}
		}
		return out
	default:
		return nil
	}
}

// Uints returns an unsigned integer tag. ok is false when the tag is absent.
func (tr *TIFFReader) Uints(ifd *IFD, id uint16) (values []uint64, ok bool, err error) {
	tag := ifd.Tags[id]
	if tag == nil {
		return nil, false, nil
	}
	if err := tr.load(tag); err != nil {
		return nil, true, err
	}
	switch v := tag.Value.(type) {
	case []uint64:
		return v, true, nil
	case []int64:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out, true, nil
	default:
		return nil, true, fmt.Errorf("tag %d: expected integer type, got %d", id, tag.Type)
	}
}

// Uint returns the first value of an unsigned integer tag, or def when the
// tag is absent.
func (tr *TIFFReader) Uint(ifd *IFD, id uint16, def uint64) (uint64, error) {
	v, ok, err := tr.Uints(ifd, id)
	if err != nil {
		return 0, err
	}
	if !ok || len(v) == 0 {
		return def, nil
	}
	return v[0], nil
}

// Floats returns a numeric tag as float64 values.
func (tr *TIFFReader) Floats(ifd *IFD, id uint16) (values []float64, ok bool, err error) {
	tag := ifd.Tags[id]
	if tag == nil {
		return nil, false, nil
	}
	if err := tr.load(tag); err != nil {
		return nil, true, err
	}
	switch v := tag.Value.(type) {
	case []float64:
		return v, true, nil
	case []uint64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true, nil
	default:
		return nil, true, fmt.Errorf("tag %d: expected numeric type, got %d", id, tag.Type)
	}
}

// ASCII returns a string tag with trailing NULs removed.
func (tr *TIFFReader) ASCII(ifd *IFD, id uint16) (value string, ok bool, err error) {
	tag := ifd.Tags[id]
	if tag == nil {
		return "", false, nil
	}
	if err := tr.load(tag); err != nil {
		return "", true, err
	}
	s, isString := tag.Value.(string)
	if !isString {
		return "", true, fmt.Errorf("tag %d: expected ASCII, got %d", id, tag.Type)
	}
	return s, true, nil
}

// GetIFD returns the IFD at the specified index (0 = main image)
func (tr *TIFFReader) GetIFD(index int) *IFD {
	if index < 0 || index >= len(tr.ifds) {
		return nil
	}
	return tr.ifds[index]
}

// IFDCount returns the number of IFDs (main image + overviews)
func (tr *TIFFReader) IFDCount() int {
	return len(tr.ifds)
}
