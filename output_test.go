package georgb

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldFilePath(t *testing.T) {
	tests := map[string]string{
		"out.tif":             "out.tfw",
		"/data/scene.rgb.tif": "/data/scene.rgb.tfw",
		"out.TIFF":            "out.tfw",
		"noext":               "noext.tfw",
		"dir.d/noext":         "dir.d/noext.tfw",
	}
	for in, want := range tests {
		assert.Equal(t, want, WorldFilePath(in), in)
	}
}

func TestWriteWorldFile(t *testing.T) {
	var buf bytes.Buffer
	g := Georeference{PixelWidth: 30, RowRotation: 0, ColumnRotation: 0, PixelHeight: -30, OriginX: 399960, OriginY: 4800000}
	require.NoError(t, WriteWorldFile(&buf, g))
	assert.Equal(t, "30\n0\n0\n-30\n399960\n4800000\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteWorldFile(&buf, Georeference{PixelWidth: 0.5, RowRotation: 0.125, ColumnRotation: -0.25, PixelHeight: -0.5, OriginX: 1.5, OriginY: 2.75}))
	assert.Equal(t, "0.5\n0.125\n-0.25\n-0.5\n1.5\n2.75\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteWorldFile(&buf, IdentityGeoreference))
	assert.Equal(t, "1\n0\n0\n1\n0\n0\n", buf.String())
}

func testResult() *Result {
	return &Result{
		RGB:          gradient(16, 12),
		Georeference: *utmGeoreference(),
		Domain:       Domain{Low: 0, High: 100},
	}
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "rgb.tif")

	worldPath, err := Publish(out, testResult(), OutputMetadata{Georeference: utmGeoreference(), GeoKeys: utmKeys()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rgb.tfw"), worldPath)

	world, err := os.ReadFile(worldPath)
	require.NoError(t, err)
	assert.Equal(t, "10\n0\n0\n-10\n500000\n4649800\n", string(world))

	src, err := Open(out)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 16, src.Metadata().Width)
	assert.Equal(t, "EPSG:32633", src.Metadata().CRS)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporaries left behind")

	if runtime.GOOS != "windows" {
		for _, path := range []string{out, worldPath} {
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), path)
		}
	}
}

func TestPublishOverwrites(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "rgb.tif")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(WorldFilePath(out), []byte("stale"), 0o644))

	_, err := Publish(out, testResult(), OutputMetadata{})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "II", string(data[:2]))
}

func TestPublishFailureLeavesNothing(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Publish(filepath.Join(dir, "nope", "rgb.tif"), testResult(), OutputMetadata{})
		assert.ErrorIs(t, err, ErrOutputWrite)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unencodable image", func(t *testing.T) {
		dir := t.TempDir()
		res := testResult()
		res.RGB = NewRGBBuffer(0, 0)
		_, err := Publish(filepath.Join(dir, "rgb.tif"), res, OutputMetadata{})
		assert.ErrorIs(t, err, ErrOutputWrite)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("world file path collides", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Publish(filepath.Join(dir, "rgb.tfw"), testResult(), OutputMetadata{})
		assert.ErrorIs(t, err, ErrOutputWrite)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("world file target is a directory", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "rgb.tif")
		require.NoError(t, os.Mkdir(WorldFilePath(out), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(WorldFilePath(out), "keep"), nil, 0o644))

		_, err := Publish(out, testResult(), OutputMetadata{})
		assert.ErrorIs(t, err, ErrOutputWrite)
		assert.NoFileExists(t, out)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "only the pre-existing directory remains")
	})
}
