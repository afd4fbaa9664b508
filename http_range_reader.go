package georgb

import (
	"fmt"
	"io"
	"sync"

	"github.com/valyala/fasthttp"
)

// Default read-ahead buffer size (64KB). Header and IFD parsing issue many
// small sequential reads.
const defaultReadAheadSize = 64 * 1024

// httpRangeReader implements io.ReadSeeker over HTTP range requests with a
// read-ahead buffer for sequential access.
type httpRangeReader struct {
	url    string
	client *fasthttp.Client
	size   int64
	mu     sync.Mutex
	pos    int64

	buffer        []byte
	bufferStart   int64 // file offset of buffer[0]
	bufferEnd     int64 // exclusive
	readAheadSize int
}

// newHTTPRangeReader issues a HEAD request for the resource size. A server
// that does not report Content-Length cannot be read.
func newHTTPRangeReader(url string, client *fasthttp.Client, readAhead int) (*httpRangeReader, error) {
	if readAhead <= 0 {
		readAhead = defaultReadAheadSize
	}
	rr := &httpRangeReader{
		url:           url,
		client:        client,
		readAheadSize: readAhead,
		bufferStart:   -1,
		bufferEnd:     -1,
	}

	size, err := rr.getSize()
	if err != nil {
		return nil, err
	}
	rr.size = size
	return rr, nil
}

// getSize gets the resource size using a HEAD request.
func (rr *httpRangeReader) getSize() (int64, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodHead)

	if err := rr.client.Do(req, resp); err != nil {
		return 0, fmt.Errorf("HEAD request failed: %w", err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return 0, fmt.Errorf("HEAD request returned status %d", code)
	}

	contentLength := resp.Header.ContentLength()
	if contentLength <= 0 {
		return 0, fmt.Errorf("server did not report a content length")
	}
	return int64(contentLength), nil
}

// Read reads from the current position, serving from the read-ahead buffer
// when possible.
func (rr *httpRangeReader) Read(p []byte) (n int, err error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.pos >= rr.size {
		return 0, io.EOF
	}

	toRead := len(p)
	if rr.pos+int64(toRead) > rr.size {
		toRead = int(rr.size - rr.pos)
	}

	if rr.buffer != nil && rr.pos >= rr.bufferStart && rr.pos < rr.bufferEnd {
		bufferOffset := int(rr.pos - rr.bufferStart)
		availableInBuffer := int(rr.bufferEnd - rr.pos)

		if availableInBuffer >= toRead {
			n = copy(p[:toRead], rr.buffer[bufferOffset:bufferOffset+toRead])
			rr.pos += int64(n)
			return n, nil
		}

		// Partial hit: drain the buffer, fetch the rest directly
		n = copy(p[:availableInBuffer], rr.buffer[bufferOffset:])
		rr.pos += int64(n)

		nn, err := rr.readFromNetwork(p[n:toRead])
		return n + nn, err
	}

	return rr.readWithReadAhead(p[:toRead])
}

// readWithReadAhead fetches at least len(p) bytes and keeps any surplus
// in the buffer.
func (rr *httpRangeReader) readWithReadAhead(p []byte) (n int, err error) {
	readSize := max(rr.readAheadSize, len(p))
	if rr.pos+int64(readSize) > rr.size {
		readSize = int(rr.size - rr.pos)
	}

	data, err := rr.fetchRange(rr.pos, rr.pos+int64(readSize)-1)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}

	if len(data) > len(p) {
		if cap(rr.buffer) >= len(data) {
			rr.buffer = rr.buffer[:len(data)]
		} else {
			rr.buffer = make([]byte, len(data))
		}
		copy(rr.buffer, data)
		rr.bufferStart = rr.pos
		rr.bufferEnd = rr.pos + int64(len(data))
	}

	n = copy(p, data)
	rr.pos += int64(n)
	return n, nil
}

// readFromNetwork reads len(p) bytes without read-ahead.
func (rr *httpRangeReader) readFromNetwork(p []byte) (n int, err error) {
	data, err := rr.fetchRange(rr.pos, rr.pos+int64(len(p))-1)
	if err != nil {
		return 0, err
	}
	n = copy(p, data)
	rr.pos += int64(n)
	return n, nil
}

// fetchRange fetches the inclusive byte range [start, end].
func (rr *httpRangeReader) fetchRange(start, end int64) ([]byte, error) {
	if end >= rr.size {
		end = rr.size - 1
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	if err := rr.client.Do(req, resp); err != nil {
		return nil, err
	}

	body := resp.Body()
	switch resp.StatusCode() {
	case fasthttp.StatusPartialContent:
	case fasthttp.StatusOK:
		// Range ignored; the body is the whole resource.
		if int64(len(body)) <= start {
			return nil, nil
		}
		body = body[start:min(int64(len(body)), end+1)]
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	// Copy body since response will be released
	result := make([]byte, len(body))
	copy(result, body)
	return result, nil
}

// Seek sets the offset for the next Read. Seeking outside the buffered range
// drops the buffer.
func (rr *httpRangeReader) Seek(offset int64, whence int) (int64, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = rr.pos + offset
	case io.SeekEnd:
		newPos = rr.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if newPos < 0 {
		return 0, fmt.Errorf("negative position: %d", newPos)
	}

	if rr.buffer != nil && (newPos < rr.bufferStart || newPos >= rr.bufferEnd) {
		rr.bufferStart = -1
		rr.bufferEnd = -1
	}

	rr.pos = newPos
	return rr.pos, nil
}
