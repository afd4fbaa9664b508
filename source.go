package georgb

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Source is an opened GeoTIFF. It implements RasterSource and reads bands
// from strips or tiles on demand. A Source is not safe for concurrent use.
type Source struct {
	reader   io.ReadSeeker
	closer   io.Closer
	tr       *TIFFReader
	ifd      *IFD
	layout   *layout
	metadata Metadata
}

type openConfig struct {
	client    *fasthttp.Client
	readAhead int
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *fasthttp.Client) OpenOption {
	return func(cfg *openConfig) { cfg.client = c }
}

// WithReadAhead sets the read-ahead buffer size for http(s) sources.
func WithReadAhead(n int) OpenOption {
	return func(cfg *openConfig) { cfg.readAhead = n }
}

// IsURL reports whether pathOrURL is read over HTTP.
func IsURL(pathOrURL string) bool {
	return strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://")
}

// Open opens a GeoTIFF from a file path or an http(s) URL and reads its
// metadata. Pixel data is read by ReadBand. Failures wrap ErrSourceOpen.
func Open(pathOrURL string, opts ...OpenOption) (*Source, error) {
	cfg := openConfig{readAhead: defaultReadAheadSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if IsURL(pathOrURL) {
		client := cfg.client
		if client == nil {
			client = &fasthttp.Client{
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
		}
		rr, err := newHTTPRangeReader(pathOrURL, client, cfg.readAhead)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrSourceOpen, pathOrURL, err)
		}
		src, err := NewSource(rr)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrSourceOpen, pathOrURL, err)
		}
		return src, nil
	}

	file, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	src, err := NewSource(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrSourceOpen, pathOrURL, err)
	}
	src.closer = file
	return src, nil
}

// NewSource reads GeoTIFF metadata from r. The caller keeps ownership of r.
func NewSource(r io.ReadSeeker) (*Source, error) {
	tr, err := NewTIFFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create TIFF reader: %w", err)
	}

	// IFD 0 is the full-resolution image; overviews are not used.
	ifd := tr.GetIFD(0)
	lay, err := readLayout(tr, ifd)
	if err != nil {
		return nil, err
	}
	geo, err := readGeoInfo(tr, ifd)
	if err != nil {
		return nil, err
	}

	return &Source{
		reader: r,
		tr:     tr,
		ifd:    ifd,
		layout: lay,
		metadata: Metadata{
			BandCount:    lay.bands,
			Width:        lay.width,
			Height:       lay.height,
			ElementType:  lay.elem,
			NoData:       geo.nodata,
			Georeference: geo.georef,
			CRS:          geo.crs,
			GeoKeys:      geo.keys,
		},
	}, nil
}

// Metadata returns the raster description read by Open.
func (s *Source) Metadata() Metadata {
	return s.metadata
}

// Close releases the underlying file, if Open created one.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// ReadBand decodes the 1-indexed band into row-major float64 samples.
func (s *Source) ReadBand(index int) ([]float64, error) {
	if index < 1 || index > s.layout.bands {
		return nil, fmt.Errorf("band %d out of range [1, %d]", index, s.layout.bands)
	}
	return s.layout.readBand(s.reader, s.tr, s.ifd, index-1)
}
