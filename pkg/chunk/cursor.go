// Package chunk splits a sequential byte stream into line-aligned chunks and
// serves them, one at a time, to concurrent consumers.
package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
)

// Sentinel errors.
var (
	// ErrChunkAlignment is returned when no line boundary appears within the
	// maximum read window before end of stream. It signals a capacity problem
	// (a single record larger than the window), not malformed data.
	ErrChunkAlignment = errors.New("no line boundary within read window")

	// ErrSourceRead wraps I/O failures of the underlying source.
	ErrSourceRead = errors.New("read source")
)

// Cursor defaults.
const (
	// DefaultBlockSize is the base number of bytes read per chunk (10^8).
	DefaultBlockSize = 100_000_000

	// DefaultMaxWindow bounds the buffer used while searching for a line
	// boundary that is further away than one block.
	DefaultMaxWindow = 1 << 30

	// DefaultTailGrowth enlarges blocks once every worker has had one,
	// so the last few chunks are fewer and larger.
	DefaultTailGrowth = 1.5

	// defaultWorkers is used when Options.Workers is not positive.
	defaultWorkers = 1
)

const lineTerminator = '\n'

// Options configures a Cursor.
type Options struct {
	// Recycler supplies and takes back chunk buffers. Nil disables reuse.
	Recycler *Recycler

	// Logger receives window-growth warnings. Nil discards them.
	Logger *slog.Logger

	// BlockSize is the base read size in bytes. Defaults to DefaultBlockSize.
	BlockSize int

	// MaxWindow caps the buffer while a line boundary is being searched.
	// Defaults to DefaultMaxWindow, and is raised to the grown block size if smaller.
	MaxWindow int

	// Workers is the number of consumers. Blocks grow by TailGrowth once
	// Workers-1 chunks have been served.
	Workers int

	// TailGrowth is the block multiplier for late chunks. Values below 1 disable growth.
	TailGrowth float64
}

// Chunk is a contiguous, line-aligned byte range.
// Data starts right after a line terminator (or at the start of the stream)
// and ends with a terminator unless it is the final chunk of the stream.
type Chunk struct {
	Data []byte
	Seq  int
}

// CursorStats describes what a Cursor has served so far.
type CursorStats struct {
	Bytes  int64
	Chunks int
	Grows  int
}

// Cursor owns the read position of a stream and hands out line-aligned chunks.
// Next is safe for concurrent use; calls are serialized.
type Cursor struct {
	src    io.Reader
	logger *slog.Logger
	opts   Options

	mu    sync.Mutex
	carry []byte
	err   error
	stats CursorStats
	eof   bool
	done  bool
}

// NewCursor creates a Cursor reading from src.
func NewCursor(src io.Reader, opts Options) *Cursor {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}

	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	if opts.TailGrowth < 1 {
		opts.TailGrowth = 1
	}

	if opts.MaxWindow <= 0 {
		opts.MaxWindow = DefaultMaxWindow
	}

	opts.MaxWindow = max(opts.MaxWindow, grownSize(opts.BlockSize, opts.TailGrowth))

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Cursor{
		src:    src,
		logger: logger,
		opts:   opts,
	}
}

// Next returns the next chunk, or io.EOF once the stream is exhausted.
// Every chunk returned before io.EOF is non-empty. Errors are sticky.
func (c *Cursor) Next() (Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return Chunk{}, c.err
	}

	if c.done {
		return Chunk{}, io.EOF
	}

	window := c.blockSize()

	buf := c.opts.Recycler.Acquire(len(c.carry) + window)
	buf = append(buf, c.carry...)
	c.carry = c.carry[:0]

	for {
		scanFrom := len(buf)

		var err error

		buf, err = c.fill(buf, window)
		if err != nil {
			c.opts.Recycler.Release(buf)
			c.err = err

			return Chunk{}, err
		}

		// Only the fresh region can hold a new boundary: the carry never does.
		if idx := bytes.LastIndexByte(buf[scanFrom:], lineTerminator); idx >= 0 {
			cut := scanFrom + idx + 1
			c.carry = append(c.carry, buf[cut:]...)

			return c.emit(buf[:cut]), nil
		}

		if c.eof {
			c.done = true

			if len(buf) == 0 {
				c.opts.Recycler.Release(buf)

				return Chunk{}, io.EOF
			}

			return c.emit(buf), nil
		}

		window = min(window*2, c.opts.MaxWindow-len(buf))
		if window <= 0 {
			// A full window may still hold the unterminated final record.
			end, err := c.atEOF()
			if err == nil && end {
				c.done = true

				return c.emit(buf), nil
			}

			c.opts.Recycler.Release(buf)

			if err != nil {
				c.err = err

				return Chunk{}, err
			}

			c.err = fmt.Errorf("%w: %s without a line terminator (max window %s)", ErrChunkAlignment,
				humanize.IBytes(uint64(len(buf))), humanize.IBytes(uint64(c.opts.MaxWindow)))

			return Chunk{}, c.err
		}

		c.stats.Grows++
		c.logger.Warn("line exceeds read block, growing window",
			"buffered", humanize.IBytes(uint64(len(buf))),
			"next_read", humanize.IBytes(uint64(window)))
	}
}

// Release returns a consumed chunk's buffer for reuse.
// The chunk must not be touched afterwards.
func (c *Cursor) Release(ch Chunk) {
	c.opts.Recycler.Release(ch.Data)
}

// Stats returns a snapshot of the cursor counters.
func (c *Cursor) Stats() CursorStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// blockSize applies the tail growth policy: once Workers-1 chunks are out,
// the remaining work is handed out in larger blocks.
func (c *Cursor) blockSize() int {
	if c.stats.Chunks+1 >= c.opts.Workers {
		return grownSize(c.opts.BlockSize, c.opts.TailGrowth)
	}

	return c.opts.BlockSize
}

// fill appends up to n bytes from the source to buf, growing it if needed.
func (c *Cursor) fill(buf []byte, n int) ([]byte, error) {
	if cap(buf)-len(buf) < n {
		grown := c.opts.Recycler.Acquire(len(buf) + n)
		grown = append(grown, buf...)
		c.opts.Recycler.Release(buf)
		buf = grown
	}

	start := len(buf)

	read, err := io.ReadFull(c.src, buf[start:start+n])
	buf = buf[:start+read]

	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.eof = true
	default:
		return buf, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}

	return buf, nil
}

// atEOF reports whether the source has no bytes left. A byte read while
// checking is lost, so it is only used right before failing the run.
func (c *Cursor) atEOF() (bool, error) {
	var next [1]byte

	n, err := io.ReadFull(c.src, next[:])

	switch {
	case n == 1:
		return false, nil
	case errors.Is(err, io.EOF):
		c.eof = true

		return true, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
}

func (c *Cursor) emit(data []byte) Chunk {
	ch := Chunk{Data: data, Seq: c.stats.Chunks}
	c.stats.Chunks++
	c.stats.Bytes += int64(len(data))

	return ch
}

func grownSize(block int, growth float64) int {
	if growth <= 1 {
		return block
	}

	return int(float64(block) * growth)
}
