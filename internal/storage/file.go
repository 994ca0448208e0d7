package storage

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/0xReLogic/tilepack/internal/container"
)

// WriteFile atomically publishes stream at path. Readers see either the old
// file or the complete new one.
func WriteFile(path string, stream []byte) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errors.Wrap(err, "failed to create container file")
	}

	if _, err := file.Write(stream); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to write container file")
	}

	// Sync to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to sync container file")
	}

	// Close the file before renaming
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to close container file")
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename container file")
	}

	return nil
}

// CompressFile compresses the file at src into a container at dst.
func CompressFile(ctx context.Context, src, dst string, opts container.Options, workers int) (*container.Result, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}

	res, err := container.CompressParallel(ctx, opts, workers, data)
	if err != nil {
		return nil, err
	}

	if err := WriteFile(dst, res.Bytes); err != nil {
		return nil, err
	}
	return res, nil
}

// DecompressFile restores the container at src into dst and returns the
// number of bytes written.
func DecompressFile(src, dst string, opts container.Options) (int, error) {
	m, err := NewMmapFile(src)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	stream, err := m.Data()
	if err != nil {
		return 0, err
	}

	d, err := container.NewDecompressor(opts)
	if err != nil {
		return 0, err
	}
	defer d.Close()

	out, err := d.Decompress(stream)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to decompress %s", src)
	}

	if err := WriteFile(dst, out); err != nil {
		return 0, err
	}
	return len(out), nil
}
