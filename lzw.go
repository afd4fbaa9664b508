package georgb

// TIFF flavoured LZW: MSB-first codes, 8-bit literals, and the code width
// grows one code early ("early change"), which compress/lzw does not do.
const (
	lzwClear    = 256
	lzwEOI      = 257
	lzwFirst    = 258
	lzwMinWidth = 9
	lzwMaxWidth = 12
	// The table is reset once the next free code reaches this value, as
	// libtiff does, so a 12-bit decoder never runs out of codes.
	lzwLimit = 1<<lzwMaxWidth - 2
)

type lzwEncoder struct {
	out   []byte
	bits  uint32
	nBits uint
	width uint
	next  uint16
	table map[uint32]uint16 // prefix<<8 | byte -> code
}

// lzwEncode compresses data into a TIFF LZW stream, starting with a Clear
// code and ending with EndOfInformation.
func lzwEncode(data []byte) []byte {
	e := &lzwEncoder{out: make([]byte, 0, len(data)/2+16)}
	e.reset()
	e.emit(lzwClear)

	if len(data) > 0 {
		w := uint16(data[0])
		for _, c := range data[1:] {
			key := uint32(w)<<8 | uint32(c)
			if code, ok := e.table[key]; ok {
				w = code
				continue
			}
			e.emit(w)
			e.table[key] = e.next
			e.advance()
			w = uint16(c)
		}
		e.emit(w)
		e.advance()
	}

	e.emit(lzwEOI)
	if e.nBits > 0 {
		e.out = append(e.out, byte(e.bits>>24))
	}
	return e.out
}

func (e *lzwEncoder) reset() {
	e.width = lzwMinWidth
	e.next = lzwFirst
	e.table = make(map[uint32]uint16, 1<<lzwMaxWidth)
}

// advance accounts for the table entry added after an emitted code.
func (e *lzwEncoder) advance() {
	e.next++
	switch {
	case e.next == lzwLimit:
		e.emit(lzwClear)
		e.reset()
	case uint(e.next) >= 1<<e.width:
		e.width++
	}
}

func (e *lzwEncoder) emit(code uint16) {
	e.bits |= uint32(code) << (32 - e.width - e.nBits)
	e.nBits += e.width
	for e.nBits >= 8 {
		e.out = append(e.out, byte(e.bits>>24))
		e.bits <<= 8
		e.nBits -= 8
	}
}
