// Package mmap provides a read-only memory-mapped view of a file,
// falling back to a full read on platforms without mmap support.
// The mapped bytes are safely shared across goroutines as long as
// nobody writes to them.
package mmap

import (
	"fmt"
	"os"
)

// File is a read-only view over a file's bytes.
type File struct {
	Data   []byte
	mapped bool
	file   *os.File
}

// Size returns the length of the view in bytes.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Open maps path read-only. Empty files yield a valid zero-length view.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		fh.Close()
		return &File{}, nil
	}

	return openMapped(fh, info.Size())
}
