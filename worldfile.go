package georgb

import (
	"bufio"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// WorldFilePath returns the sidecar path for an output image: the extension
// is replaced with ".tfw".
func WorldFilePath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".tfw"
}

// WriteWorldFile writes the six coefficients of g, one per line, in
// world-file order: pixel width, row rotation, column rotation, pixel height,
// origin x, origin y. The origin is the outer corner of the top-left pixel.
func WriteWorldFile(w io.Writer, g Georeference) error {
	bw := bufio.NewWriter(w)
	for _, v := range g.Coefficients() {
		bw.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
