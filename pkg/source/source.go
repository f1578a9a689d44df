// Package source opens the record stream for a run.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// ErrSourceUnavailable is returned when the input cannot be opened for reading.
var ErrSourceUnavailable = errors.New("source unavailable")

// Stdin is the path that selects standard input.
const Stdin = "-"

// lz4Suffix marks LZ4-framed inputs, decoded on the fly.
const lz4Suffix = ".lz4"

// Source is an open input stream.
type Source struct {
	io.Reader

	file *os.File

	// Name is the path the source was opened from.
	Name string

	// Size is the on-disk size in bytes, or -1 when unknown (stdin, pipes).
	Size int64

	// Compressed reports whether the stream is decoded from LZ4 frames.
	Compressed bool
}

// Open opens path for reading. "-" reads standard input; a ".lz4" suffix
// selects LZ4 frame decoding. Failures wrap ErrSourceUnavailable.
func Open(path string) (*Source, error) {
	if path == Stdin {
		return &Source{Reader: os.Stdin, Name: path, Size: -1}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	src := &Source{Reader: file, file: file, Name: path, Size: -1}
	if info.Mode().IsRegular() {
		src.Size = info.Size()
	}

	if strings.HasSuffix(path, lz4Suffix) {
		src.Reader = lz4.NewReader(file)
		src.Compressed = true
	}

	return src, nil
}

// Close releases the underlying file. Standard input is left open.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", s.Name, err)
	}

	return nil
}
