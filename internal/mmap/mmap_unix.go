//go:build unix

package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func openMapped(fh *os.File, size int64) (*File, error) {
	data, err := unix.Mmap(int(fh.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("mmap %s: %w", fh.Name(), err)
	}

	// Sequential scans dominate; tell the kernel.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return &File{Data: data, mapped: true, file: fh}, nil
}

// Close unmaps the view and closes the underlying file. In-flight
// readers fail on their next page access rather than reading stale data.
func (f *File) Close() error {
	if !f.mapped {
		f.Data = nil
		return nil
	}
	data := f.Data
	f.Data = nil
	f.mapped = false
	err := unix.Munmap(data)
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}
