//go:build !unix && !windows

package storage

import (
	"io"
	"os"
)

// mapFile reads the whole file where no mapping is available.
func mapFile(file *os.File, size int64) ([]byte, func() error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
