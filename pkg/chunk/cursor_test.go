package chunk_test

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetzteFee/1brc/pkg/chunk"
)

func drain(t *testing.T, cur *chunk.Cursor) [][]byte {
	t.Helper()

	var out [][]byte

	for {
		ch, err := cur.Next()
		if errors.Is(err, io.EOF) {
			return out
		}

		require.NoError(t, err)
		require.NotEmpty(t, ch.Data, "chunk %d is empty", ch.Seq)

		out = append(out, bytes.Clone(ch.Data))
		cur.Release(ch)
	}
}

func assertLineAligned(t *testing.T, input string, chunks [][]byte) {
	t.Helper()

	assert.Equal(t, input, string(bytes.Join(chunks, nil)), "chunks must reassemble the source")

	for i, data := range chunks {
		if i < len(chunks)-1 || strings.HasSuffix(input, "\n") {
			assert.Equal(t, byte('\n'), data[len(data)-1], "chunk %d must end on a line terminator", i)
		}
	}
}

func TestCursor_LineBoundaryInvariant(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"trailing_newline":    "Hamburg;12.0\nBulawayo;8.9\nPalembang;38.8\nSt. John's;15.2\nCracow;12.6\n",
		"no_trailing_newline": "a;1.0\nbb;-2.5\nccc;3.3",
		"single_byte_lines":   strings.Repeat("\n", 37),
		"long_and_short":      "x;1.0\n" + strings.Repeat("y", 50) + ";2.0\nz;3.0\n",
	}

	for name, input := range inputs {
		for _, block := range []int{1, 2, 3, 5, 7, 16, 64, 1024} {
			for _, workers := range []int{1, 4} {
				t.Run(name, func(t *testing.T) {
					t.Parallel()

					cur := chunk.NewCursor(strings.NewReader(input), chunk.Options{
						BlockSize:  block,
						Workers:    workers,
						TailGrowth: chunk.DefaultTailGrowth,
						Recycler:   chunk.NewRecycler(2),
					})

					chunks := drain(t, cur)
					assertLineAligned(t, input, chunks)

					stats := cur.Stats()
					assert.Equal(t, len(chunks), stats.Chunks)
					assert.Equal(t, int64(len(input)), stats.Bytes)
				})
			}
		}
	}
}

func TestCursor_OneByteReader(t *testing.T) {
	t.Parallel()

	input := "a;1.0\nb;2.0\nc;3.0\nd;4.0\n"
	cur := chunk.NewCursor(iotest.OneByteReader(strings.NewReader(input)), chunk.Options{BlockSize: 8})

	assertLineAligned(t, input, drain(t, cur))
}

func TestCursor_DataWithEOF(t *testing.T) {
	t.Parallel()

	input := "a;1.0\nb;2.0"
	cur := chunk.NewCursor(iotest.DataErrReader(strings.NewReader(input)), chunk.Options{BlockSize: 4})

	assertLineAligned(t, input, drain(t, cur))
}

func TestCursor_SingleRecordWithoutTerminator(t *testing.T) {
	t.Parallel()

	cur := chunk.NewCursor(strings.NewReader("a;1.0"), chunk.Options{BlockSize: 1024})

	ch, err := cur.Next()
	require.NoError(t, err)
	assert.Equal(t, "a;1.0", string(ch.Data))

	_, err = cur.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestCursor_EmptySource(t *testing.T) {
	t.Parallel()

	cur := chunk.NewCursor(strings.NewReader(""), chunk.Options{BlockSize: 16})

	for range 3 {
		_, err := cur.Next()
		require.ErrorIs(t, err, io.EOF)
	}

	assert.Zero(t, cur.Stats().Chunks)
}

func TestCursor_GrowsWindowForLongLine(t *testing.T) {
	t.Parallel()

	input := "abcdefghij;1.0\nb;2.0\n"
	cur := chunk.NewCursor(strings.NewReader(input), chunk.Options{BlockSize: 4, TailGrowth: 1})

	chunks := drain(t, cur)
	require.Len(t, chunks, 1)
	assert.Equal(t, input, string(chunks[0]))
	assert.Equal(t, 2, cur.Stats().Grows)
}

func TestCursor_AlignmentFailure(t *testing.T) {
	t.Parallel()

	input := "a;" + strings.Repeat("x", 40) + "\n"
	cur := chunk.NewCursor(strings.NewReader(input), chunk.Options{
		BlockSize:  4,
		MaxWindow:  16,
		TailGrowth: 1,
	})

	_, err := cur.Next()
	require.ErrorIs(t, err, chunk.ErrChunkAlignment)

	// Errors are sticky.
	_, err = cur.Next()
	require.ErrorIs(t, err, chunk.ErrChunkAlignment)
}

func TestCursor_FinalRecordFillsWindow(t *testing.T) {
	t.Parallel()

	cur := chunk.NewCursor(strings.NewReader("a;12.3"), chunk.Options{
		BlockSize: 3,
		MaxWindow: 6,
		Workers:   1,
	})

	ch, err := cur.Next()
	require.NoError(t, err)
	assert.Equal(t, "a;12.3", string(ch.Data))
	cur.Release(ch)

	_, err = cur.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestCursor_FullWindowFollowedByData(t *testing.T) {
	t.Parallel()

	cur := chunk.NewCursor(strings.NewReader("a;12.3;more\n"), chunk.Options{
		BlockSize: 3,
		MaxWindow: 6,
		Workers:   1,
	})

	_, err := cur.Next()
	require.ErrorIs(t, err, chunk.ErrChunkAlignment)
}

func TestCursor_SourceReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	cur := chunk.NewCursor(iotest.ErrReader(boom), chunk.Options{BlockSize: 4})

	_, err := cur.Next()
	require.ErrorIs(t, err, chunk.ErrSourceRead)
	require.ErrorIs(t, err, boom)
}

func TestCursor_TailGrowth(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("\n", 100)
	cur := chunk.NewCursor(strings.NewReader(input), chunk.Options{
		BlockSize:  10,
		Workers:    2,
		TailGrowth: 2,
	})

	var sizes []int
	for _, data := range drain(t, cur) {
		sizes = append(sizes, len(data))
	}

	assert.Equal(t, []int{10, 20, 20, 20, 20, 10}, sizes)
}

func TestCursor_ConcurrentConsumers(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := range 5000 {
		sb.WriteString("station")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(";12.3\n")
	}

	input := sb.String()
	cur := chunk.NewCursor(strings.NewReader(input), chunk.Options{
		BlockSize: 257,
		Workers:   8,
		Recycler:  chunk.NewRecycler(8),
	})

	var (
		mu  sync.Mutex
		got = map[int][]byte{}
		wg  sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				ch, err := cur.Next()
				if err != nil {
					assert.ErrorIs(t, err, io.EOF)

					return
				}

				mu.Lock()
				got[ch.Seq] = bytes.Clone(ch.Data)
				mu.Unlock()

				cur.Release(ch)
			}
		}()
	}

	wg.Wait()

	seqs := make([]int, 0, len(got))
	for seq := range got {
		seqs = append(seqs, seq)
	}

	slices.Sort(seqs)

	ordered := make([][]byte, 0, len(seqs))
	for i, seq := range seqs {
		require.Equal(t, i, seq, "sequence numbers must be dense")

		ordered = append(ordered, got[seq])
	}

	assertLineAligned(t, input, ordered)
}
