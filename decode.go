package georgb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff/lzw"
	"golang.org/x/sync/errgroup"
)

// Planar configurations
const (
	planarChunky   = 1 // RGBRGB...
	planarSeparate = 2 // one plane per band
)

// Predictors
const (
	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3
)

// maxImagePixels bounds width*height so a corrupt header cannot force a
// band allocation larger than 2 GiB.
const maxImagePixels = 1 << 28

// layout is how the image's samples are stored: element type, strip or tile
// geometry, interleaving, compression and predictor.
type layout struct {
	width, height int
	bands         int
	elem          ElementType
	planar        int
	compression   uint64
	predictor     uint64

	tiled          bool
	chunkW, chunkH int // tile size, or (width, rows per strip)
	across, down   int // chunks per row and per column
}

// readLayout validates the storage tags of ifd.
func readLayout(tr *TIFFReader, ifd *IFD) (*layout, error) {
	l := &layout{}

	width, err := tr.Uint(ifd, TagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := tr.Uint(ifd, TagImageLength, 0)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	if width*height > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d image exceeds %d pixels", ErrUnsupported, width, height, maxImagePixels)
	}
	l.width, l.height = int(width), int(height)

	spp, err := tr.Uint(ifd, TagSamplesPerPixel, 1)
	if err != nil {
		return nil, err
	}
	if spp == 0 {
		return nil, fmt.Errorf("SamplesPerPixel is 0")
	}
	l.bands = int(spp)

	if l.elem, err = readElementType(tr, ifd); err != nil {
		return nil, err
	}

	planar, err := tr.Uint(ifd, TagPlanarConfiguration, planarChunky)
	if err != nil {
		return nil, err
	}
	if planar != planarChunky && planar != planarSeparate {
		return nil, fmt.Errorf("%w: PlanarConfiguration %d", ErrUnsupported, planar)
	}
	l.planar = int(planar)

	if l.compression, err = tr.Uint(ifd, TagCompression, CompressionNone); err != nil {
		return nil, err
	}
	switch l.compression {
	case CompressionNone, CompressionLZW, CompressionDeflate, CompressionAdobeDeflate, CompressionZSTD:
	default:
		return nil, fmt.Errorf("%w: compression type %d", ErrUnsupported, l.compression)
	}

	if l.predictor, err = tr.Uint(ifd, TagPredictor, predictorNone); err != nil {
		return nil, err
	}
	switch {
	case l.predictor == predictorNone:
	case l.predictor == predictorHorizontal && !l.elem.IsFloat():
	case l.predictor == predictorFloat && l.elem.IsFloat():
	default:
		return nil, fmt.Errorf("%w: predictor %d for %s samples", ErrUnsupported, l.predictor, l.elem)
	}

	if _, tiled := ifd.Tags[TagTileWidth]; tiled {
		tw, err := tr.Uint(ifd, TagTileWidth, 0)
		if err != nil {
			return nil, err
		}
		th, err := tr.Uint(ifd, TagTileLength, 0)
		if err != nil {
			return nil, err
		}
		if tw == 0 || th == 0 {
			return nil, fmt.Errorf("invalid tile size %dx%d", tw, th)
		}
		l.tiled = true
		l.chunkW, l.chunkH = int(tw), int(th)
	} else {
		rows, err := tr.Uint(ifd, TagRowsPerStrip, height)
		if err != nil {
			return nil, err
		}
		if rows == 0 || rows > height {
			rows = height
		}
		l.chunkW, l.chunkH = l.width, int(rows)
	}
	l.across = (l.width + l.chunkW - 1) / l.chunkW
	l.down = (l.height + l.chunkH - 1) / l.chunkH

	return l, nil
}

// readElementType maps BitsPerSample and SampleFormat to an ElementType.
// Every band must share one type.
func readElementType(tr *TIFFReader, ifd *IFD) (ElementType, error) {
	bits, ok, err := tr.Uints(ifd, TagBitsPerSample)
	if err != nil {
		return ElementType{}, err
	}
	if !ok || len(bits) == 0 {
		bits = []uint64{1}
	}
	formats, ok, err := tr.Uints(ifd, TagSampleFormat)
	if err != nil {
		return ElementType{}, err
	}
	if !ok || len(formats) == 0 {
		formats = []uint64{1}
	}
	for _, b := range bits[1:] {
		if b != bits[0] {
			return ElementType{}, fmt.Errorf("%w: mixed BitsPerSample %v", ErrUnsupported, bits)
		}
	}
	for _, f := range formats[1:] {
		if f != formats[0] {
			return ElementType{}, fmt.Errorf("%w: mixed SampleFormat %v", ErrUnsupported, formats)
		}
	}

	// SampleFormat: 1 = unsigned integer, 2 = signed integer, 3 = IEEE floating point
	var kind NumericKind
	switch formats[0] {
	case 1, 4: // 4 = undefined, read as unsigned
		kind = Unsigned
	case 2:
		kind = Signed
	case 3:
		kind = Float
	default:
		return ElementType{}, fmt.Errorf("%w: SampleFormat %d", ErrUnsupported, formats[0])
	}

	t := ElementType{Kind: kind, Bits: int(bits[0])}
	switch t {
	case Uint8, Int8, Uint16, Int16, Uint32, Int32, Float32, Float64:
		return t, nil
	default:
		return ElementType{}, fmt.Errorf("%w: %d-bit samples with SampleFormat %d", ErrUnsupported, bits[0], formats[0])
	}
}

// chunk is one strip or tile of the plane being read.
type chunk struct {
	cx, cy int
	offset uint64
	size   uint64
	raw    []byte
}

// readBand decodes band (0-indexed) into a width*height slice. Compressed
// chunks are read sequentially from r, then decoded in parallel.
func (l *layout) readBand(r io.ReadSeeker, tr *TIFFReader, ifd *IFD, band int) ([]float64, error) {
	offsetsTag, countsTag := uint16(TagStripOffsets), uint16(TagStripByteCounts)
	if l.tiled {
		offsetsTag, countsTag = TagTileOffsets, TagTileByteCounts
	}
	offsets, ok, err := tr.Uints(ifd, offsetsTag)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk offsets: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("image is neither tiled nor stripped")
	}
	counts, ok, err := tr.Uints(ifd, countsTag)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk byte counts: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("missing chunk byte counts")
	}

	perPlane := l.across * l.down
	planes := 1
	plane, sampleInPixel, spp := 0, band, l.bands
	if l.planar == planarSeparate {
		planes = l.bands
		plane, sampleInPixel, spp = band, 0, 1
	}
	if len(offsets) < perPlane*planes || len(counts) < perPlane*planes {
		return nil, fmt.Errorf("chunk table has %d offsets and %d counts, need %d", len(offsets), len(counts), perPlane*planes)
	}

	chunks := make([]*chunk, perPlane)
	for i := range chunks {
		idx := plane*perPlane + i
		chunks[i] = &chunk{cx: i % l.across, cy: i / l.across, offset: offsets[idx], size: counts[idx]}
	}
	release := func() {
		for _, c := range chunks {
			if c.raw != nil {
				PutBuffer(c.raw)
				c.raw = nil
			}
		}
	}

	// Phase 1: read compressed chunks (I/O bound, the reader is not shared)
	for _, c := range chunks {
		if c.size > maxTagBytes {
			release()
			return nil, fmt.Errorf("chunk at %d too large: %d bytes", c.offset, c.size)
		}
		c.raw = GetBuffer(int(c.size))
		if _, err := r.Seek(int64(c.offset), io.SeekStart); err != nil {
			release()
			return nil, fmt.Errorf("failed to seek to chunk: %w", err)
		}
		if _, err := io.ReadFull(r, c.raw); err != nil {
			release()
			return nil, fmt.Errorf("failed to read chunk at %d: %w", c.offset, err)
		}
	}

	// Phase 2: decode in parallel (CPU bound); chunks write disjoint pixels
	out := make([]float64, l.width*l.height)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			cols, rows := l.chunkDims(c)
			data, order, err := l.decodeChunk(c.raw, cols, rows, spp, ifd.ByteOrder)
			if err != nil {
				return fmt.Errorf("chunk (%d, %d): %w", c.cx, c.cy, err)
			}
			l.scatter(data, order, c, cols, rows, spp, sampleInPixel, out)
			return nil
		})
	}
	err = g.Wait()
	release()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// chunkDims returns the stored size of c. Tiles are always full size; the
// last strip only holds the remaining rows.
func (l *layout) chunkDims(c *chunk) (cols, rows int) {
	if l.tiled {
		return l.chunkW, l.chunkH
	}
	return l.width, min(l.chunkH, l.height-c.cy*l.chunkH)
}

// decodeChunk decompresses raw and undoes the predictor. The returned byte
// order differs from the file's only for the floating point predictor.
func (l *layout) decodeChunk(raw []byte, cols, rows, spp int, order binary.ByteOrder) ([]byte, binary.ByteOrder, error) {
	bps := l.elem.BytesPerSample()
	expected := cols * rows * spp * bps

	var data []byte
	switch l.compression {
	case CompressionNone:
		data = raw

	case CompressionLZW:
		data = make([]byte, expected)
		rd := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		_, err := io.ReadFull(rd, data)
		rd.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress LZW chunk (%d bytes, expected %d): %w", len(raw), expected, err)
		}

	case CompressionDeflate, CompressionAdobeDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress Deflate chunk: %w", err)
		}
		data = make([]byte, expected)
		_, err = io.ReadFull(zr, data)
		zr.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decompress Deflate chunk: %w", err)
		}

	case CompressionZSTD:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, nil, err
		}
		if data, err = dec.DecodeAll(raw, make([]byte, 0, expected)); err != nil {
			return nil, nil, fmt.Errorf("failed to decompress ZSTD chunk: %w", err)
		}
	}

	if len(data) < expected {
		return nil, nil, fmt.Errorf("chunk holds %d bytes, expected at least %d", len(data), expected)
	}
	data = data[:expected]

	switch l.predictor {
	case predictorHorizontal:
		undoHorizontal(data, cols*spp, spp, bps, order)
	case predictorFloat:
		return undoFloatPredictor(data, cols*spp, spp, bps), binary.BigEndian, nil
	}
	return data, order, nil
}

var (
	zstdOnce sync.Once
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// zstdDecoder returns a shared decoder; DecodeAll is safe for concurrent use.
func zstdDecoder() (*zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdDec, zstdErr
}

// undoHorizontal reverses TIFF predictor 2 in place. rowSamples is the
// number of samples in one row; stride is the samples per pixel.
func undoHorizontal(data []byte, rowSamples, stride, bps int, order binary.ByteOrder) {
	rowBytes := rowSamples * bps
	for start := 0; start+rowBytes <= len(data); start += rowBytes {
		row := data[start : start+rowBytes]
		switch bps {
		case 1:
			for i := stride; i < rowSamples; i++ {
				row[i] += row[i-stride]
			}
		case 2:
			for i := stride; i < rowSamples; i++ {
				v := order.Uint16(row[i*2:]) + order.Uint16(row[(i-stride)*2:])
				order.PutUint16(row[i*2:], v)
			}
		case 4:
			for i := stride; i < rowSamples; i++ {
				v := order.Uint32(row[i*4:]) + order.Uint32(row[(i-stride)*4:])
				order.PutUint32(row[i*4:], v)
			}
		}
	}
}

// undoFloatPredictor reverses TIFF predictor 3: byte-wise differencing over
// the row followed by a split into byte planes, most significant first. The
// result is big-endian.
func undoFloatPredictor(data []byte, rowSamples, stride, bps int) []byte {
	rowBytes := rowSamples * bps
	out := make([]byte, len(data))
	for start := 0; start+rowBytes <= len(data); start += rowBytes {
		row := data[start : start+rowBytes]
		for i := stride; i < rowBytes; i++ {
			row[i] += row[i-stride]
		}
		dst := out[start : start+rowBytes]
		for s := 0; s < rowSamples; s++ {
			for b := 0; b < bps; b++ {
				dst[s*bps+b] = row[b*rowSamples+s]
			}
		}
	}
	return out
}

// scatter copies one band's samples from a decoded chunk into out, dropping
// tile padding beyond the image edge.
func (l *layout) scatter(data []byte, order binary.ByteOrder, c *chunk, cols, rows, spp, sampleInPixel int, out []float64) {
	bps := l.elem.BytesPerSample()
	read := sampleReader(l.elem, order)
	x0, y0 := c.cx*l.chunkW, c.cy*l.chunkH

	for r := 0; r < rows && y0+r < l.height; r++ {
		dst := out[(y0+r)*l.width:]
		for col := 0; col < cols && x0+col < l.width; col++ {
			off := ((r*cols+col)*spp + sampleInPixel) * bps
			dst[x0+col] = read(data[off : off+bps])
		}
	}
}

// sampleReader returns a decoder for one stored sample.
func sampleReader(t ElementType, order binary.ByteOrder) func([]byte) float64 {
	switch t {
	case Uint8:
		return func(b []byte) float64 { return float64(b[0]) }
	case Int8:
		return func(b []byte) float64 { return float64(int8(b[0])) }
	case Uint16:
		return func(b []byte) float64 { return float64(order.Uint16(b)) }
	case Int16:
		return func(b []byte) float64 { return float64(int16(order.Uint16(b))) }
	case Uint32:
		return func(b []byte) float64 { return float64(order.Uint32(b)) }
	case Int32:
		return func(b []byte) float64 { return float64(int32(order.Uint32(b))) }
	case Float32:
		return func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }
	default: // Float64
		return func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }
	}
}
