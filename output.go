package georgb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Publish writes res as a GeoTIFF at outPath and its world file next to it.
// Both files are written to temporaries in the destination directory and
// renamed into place only after both succeeded, so a failure leaves neither
// behind. Errors wrap ErrOutputWrite.
func Publish(outPath string, res *Result, md OutputMetadata) (worldPath string, err error) {
	worldPath = WorldFilePath(outPath)
	if worldPath == outPath {
		return "", fmt.Errorf("%w: output path %s collides with its world file", ErrOutputWrite, outPath)
	}

	imgTmp, err := writeTemp(outPath, func(w io.Writer) error {
		return WriteGeoTIFF(w, res.RGB, md)
	})
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrOutputWrite, outPath, err)
	}
	defer os.Remove(imgTmp)

	worldTmp, err := writeTemp(worldPath, func(w io.Writer) error {
		return WriteWorldFile(w, res.Georeference)
	})
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrOutputWrite, worldPath, err)
	}
	defer os.Remove(worldTmp)

	if err := os.Rename(imgTmp, outPath); err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrOutputWrite, outPath, err)
	}
	if err := os.Rename(worldTmp, worldPath); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("%w %s: %w", ErrOutputWrite, worldPath, err)
	}
	return worldPath, nil
}

// writeTemp runs write against a new temporary file beside target and
// returns its name. The file is removed if anything fails.
func writeTemp(target string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()

	// CreateTemp uses 0600; published files get the usual 0644.
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
