package georgb

import (
	"sync"
)

// Chunk buffer pools. Compressed strips and tiles are read into pooled
// buffers so converting a large raster does not allocate once per chunk.

// chunkSizeClasses are the pooled capacities, smallest first. Typical
// GeoTIFF tiles are 256x256 or 512x512 at up to 4 bytes per sample.
var chunkSizeClasses = [...]int{
	64 * 1024,       // 64KB
	256 * 1024,      // 256KB
	1024 * 1024,     // 1MB
	4 * 1024 * 1024, // 4MB
}

var chunkPools [len(chunkSizeClasses)]sync.Pool

func init() {
	for i, size := range chunkSizeClasses {
		size := size
		chunkPools[i].New = func() interface{} {
			buf := make([]byte, size)
			return &buf
		}
	}
}

// GetBuffer returns a byte slice of length size. Slices up to the largest
// size class come from a pool; return them with PutBuffer.
func GetBuffer(size int) []byte {
	for i, class := range chunkSizeClasses {
		if size <= class {
			bufPtr := chunkPools[i].Get().(*[]byte)
			return (*bufPtr)[:size]
		}
	}
	return make([]byte, size)
}

// PutBuffer returns a buffer obtained from GetBuffer. Buffers of other
// capacities are dropped.
func PutBuffer(buf []byte) {
	c := cap(buf)
	for i, class := range chunkSizeClasses {
		if c == class {
			buf = buf[:c]
			chunkPools[i].Put(&buf)
			return
		}
	}
}
