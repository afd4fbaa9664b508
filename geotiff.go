package georgb

import (
	"fmt"
	"strconv"
	"strings"
)

// GeoTIFF tag IDs
const (
	TagModelPixelScale     = 33550
	TagModelTiepoint       = 33922
	TagModelTransformation = 34264
	TagGeoKeyDirectory     = 34735
	TagGeoDoubleParams     = 34736
	TagGeoAsciiParams      = 34737
)

// GeoKeys
const (
	GTModelTypeGeoKey     = 1024
	GTModelTypeGeographic = 1
	GTModelTypeProjected  = 2

	GTRasterTypeGeoKey       = 1025
	GTRasterTypePixelIsArea  = 1
	GTRasterTypePixelIsPoint = 2

	GTCitationGeoKey     = 1026
	GeographicTypeGeoKey = 2048
	GeogCitationGeoKey   = 2049

	ProjectedCSTypeGeoKey = 3072
	PCSCitationGeoKey     = 3073
)

// GeoKeyDirectory is the raw GeoKey payload of a GeoTIFF. It is carried
// verbatim from source to output so the CRS survives conversion.
type GeoKeyDirectory struct {
	Directory []uint16 // header + 4 SHORTs per key
	Doubles   []float64
	ASCII     string
}

// geoKey is one decoded directory entry.
type geoKey struct {
	id       uint16
	location uint16
	count    uint16
	value    uint16
}

// keys decodes the directory entries. Malformed trailing entries are ignored.
func (d *GeoKeyDirectory) keys() []geoKey {
	if d == nil || len(d.Directory) < 4 {
		return nil
	}
	n := int(d.Directory[3])
	out := make([]geoKey, 0, n)
	for i := 4; i+3 < len(d.Directory) && len(out) < n; i += 4 {
		out = append(out, geoKey{
			id:       d.Directory[i],
			location: d.Directory[i+1],
			count:    d.Directory[i+2],
			value:    d.Directory[i+3],
		})
	}
	return out
}

// ShortKey returns a key stored inline in the directory.
func (d *GeoKeyDirectory) ShortKey(id uint16) (uint16, bool) {
	for _, k := range d.keys() {
		if k.id == id && k.location == 0 {
			return k.value, true
		}
	}
	return 0, false
}

// ASCIIKey returns a key stored in GeoAsciiParams, without its '|' terminator.
func (d *GeoKeyDirectory) ASCIIKey(id uint16) (string, bool) {
	for _, k := range d.keys() {
		if k.id != id || k.location != TagGeoAsciiParams {
			continue
		}
		start, end := int(k.value), int(k.value)+int(k.count)
		if start >= len(d.ASCII) {
			return "", false
		}
		if end > len(d.ASCII) {
			end = len(d.ASCII)
		}
		return strings.TrimRight(d.ASCII[start:end], "|\x00"), true
	}
	return "", false
}

// withShort returns a copy of the directory with key id set to v. The key is
// only replaced, never added.
func (d *GeoKeyDirectory) withShort(id, v uint16) *GeoKeyDirectory {
	if d == nil {
		return nil
	}
	out := &GeoKeyDirectory{
		Directory: append([]uint16(nil), d.Directory...),
		Doubles:   d.Doubles,
		ASCII:     d.ASCII,
	}
	for i := 4; i+3 < len(out.Directory); i += 4 {
		if out.Directory[i] == id && out.Directory[i+1] == 0 {
			out.Directory[i+3] = v
		}
	}
	return out
}

// CRS returns an "EPSG:<code>" identifier, falling back to the citation text.
func (d *GeoKeyDirectory) CRS() string {
	if code, ok := d.ShortKey(ProjectedCSTypeGeoKey); ok && code != 0 && code != 32767 {
		return fmt.Sprintf("EPSG:%d", code)
	}
	if code, ok := d.ShortKey(GeographicTypeGeoKey); ok && code != 0 && code != 32767 {
		return fmt.Sprintf("EPSG:%d", code)
	}
	for _, id := range []uint16{PCSCitationGeoKey, GTCitationGeoKey, GeogCitationGeoKey} {
		if s, ok := d.ASCIIKey(id); ok && s != "" {
			return s
		}
	}
	return ""
}

// geoInfo is the georeferencing found in an IFD.
type geoInfo struct {
	georef *Georeference
	keys   *GeoKeyDirectory
	crs    string
	nodata NoData
}

// readGeoInfo reads the GeoTIFF and GDAL tags of ifd.
func readGeoInfo(tr *TIFFReader, ifd *IFD) (*geoInfo, error) {
	info := &geoInfo{}

	dir, ok, err := tr.Uints(ifd, TagGeoKeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoKeyDirectory: %w", err)
	}
	if ok {
		if len(dir) < 4 {
			return nil, fmt.Errorf("GeoKeyDirectory too short")
		}
		keys := &GeoKeyDirectory{Directory: make([]uint16, len(dir))}
		for i, v := range dir {
			keys.Directory[i] = uint16(v)
		}
		if keys.Doubles, _, err = tr.Floats(ifd, TagGeoDoubleParams); err != nil {
			return nil, fmt.Errorf("failed to read GeoDoubleParams: %w", err)
		}
		if keys.ASCII, _, err = tr.ASCII(ifd, TagGeoAsciiParams); err != nil {
			return nil, fmt.Errorf("failed to read GeoAsciiParams: %w", err)
		}
		info.keys = keys
		info.crs = keys.CRS()
	}

	if info.georef, err = readGeoreference(tr, ifd); err != nil {
		return nil, err
	}
	if info.georef != nil && info.keys != nil {
		if rt, ok := info.keys.ShortKey(GTRasterTypeGeoKey); ok && rt == GTRasterTypePixelIsPoint {
			// Same half-pixel shift GDAL applies to PixelIsPoint rasters.
			g := info.georef
			g.OriginX -= 0.5*g.PixelWidth + 0.5*g.RowRotation
			g.OriginY -= 0.5*g.ColumnRotation + 0.5*g.PixelHeight
		}
	}

	if s, ok, err := tr.ASCII(ifd, TagGDALNoData); err != nil {
		return nil, fmt.Errorf("failed to read GDAL_NODATA: %w", err)
	} else if ok {
		if info.nodata, err = parseNoData(s); err != nil {
			return nil, err
		}
	}

	return info, nil
}

// readGeoreference builds the affine transform from ModelTransformation, or
// from ModelTiepoint plus ModelPixelScale. It returns nil when neither is
// present.
func readGeoreference(tr *TIFFReader, ifd *IFD) (*Georeference, error) {
	m, ok, err := tr.Floats(ifd, TagModelTransformation)
	if err != nil {
		return nil, fmt.Errorf("failed to read ModelTransformation: %w", err)
	}
	if ok && len(m) >= 16 {
		// Row-major 4x4: x = m0*col + m1*row + m3, y = m4*col + m5*row + m7
		return &Georeference{
			PixelWidth:     m[0],
			RowRotation:    m[1],
			ColumnRotation: m[4],
			PixelHeight:    m[5],
			OriginX:        m[3],
			OriginY:        m[7],
		}, nil
	}

	tie, hasTie, err := tr.Floats(ifd, TagModelTiepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to read ModelTiepoint: %w", err)
	}
	scale, hasScale, err := tr.Floats(ifd, TagModelPixelScale)
	if err != nil {
		return nil, fmt.Errorf("failed to read ModelPixelScale: %w", err)
	}
	if !hasTie || !hasScale || len(tie) < 6 || len(scale) < 2 {
		return nil, nil
	}

	// Tie point (I, J, K, X, Y, Z) anchors pixel (I, J) at model (X, Y).
	return &Georeference{
		PixelWidth:  scale[0],
		PixelHeight: -scale[1],
		OriginX:     tie[3] - tie[0]*scale[0],
		OriginY:     tie[4] + tie[1]*scale[1],
	}, nil
}

// parseNoData parses the GDAL_NODATA ASCII value.
func parseNoData(s string) (NoData, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return NoData{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NoData{}, fmt.Errorf("invalid GDAL_NODATA value %q: %w", s, err)
	}
	return NoData{Value: v, Set: true}, nil
}
