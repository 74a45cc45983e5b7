//go:build !unix

package mmap

import (
	"fmt"
	"io"
	"os"
)

func openMapped(fh *os.File, size int64) (*File, error) {
	defer fh.Close()

	data := make([]byte, size)
	if _, err := io.ReadFull(fh, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Name(), err)
	}
	return &File{Data: data}, nil
}

// Close releases the buffered copy.
func (f *File) Close() error {
	f.Data = nil
	return nil
}
