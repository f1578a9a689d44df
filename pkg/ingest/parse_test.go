package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetzteFee/1brc/pkg/ingest"
	"github.com/LetzteFee/1brc/pkg/station"
)

func TestParseChunk_FoldsRecords(t *testing.T) {
	t.Parallel()

	table := station.NewTable(0)

	n, err := ingest.ParseChunk([]byte("a;1.0\nb;2.0\na;3.0\n"), table)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Contains(t, table, "a")
	assert.InDelta(t, 1.0, table["a"].Min, 1e-9)
	assert.InDelta(t, 3.0, table["a"].Max, 1e-9)
	assert.Equal(t, uint64(2), table["a"].Count)
	assert.Equal(t, uint64(1), table["b"].Count)
}

func TestParseChunk_LastLineWithoutTerminator(t *testing.T) {
	t.Parallel()

	table := station.NewTable(0)

	n, err := ingest.ParseChunk([]byte("a;1.0\nb;-2.5"), table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, -2.5, table["b"].Min, 1e-9)
}

func TestParseChunk_StripsCarriageReturn(t *testing.T) {
	t.Parallel()

	table := station.NewTable(0)

	_, err := ingest.ParseChunk([]byte("Hamburg;12.0\r\nHamburg;8.0\r\n"), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hamburg"}, table.Names())
	assert.Equal(t, int64(200), table["Hamburg"].Sum)
}

func TestParseChunk_NamesKeepSpacesAndUnicode(t *testing.T) {
	t.Parallel()

	table := station.NewTable(0)

	_, err := ingest.ParseChunk([]byte("St. John's;15.2\nİzmir;18.0\nKraków;-1.1\n"), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kraków", "St. John's", "İzmir"}, table.Names())
}

func TestParseChunk_SeparatorInValueIsMalformed(t *testing.T) {
	t.Parallel()

	// Only the first ';' separates; the rest belongs to the value.
	_, err := ingest.ParseChunk([]byte("a;1.0;2.0\n"), station.NewTable(0))
	require.ErrorIs(t, err, ingest.ErrMalformedValue)
}

func TestParseChunk_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
		folded  int
	}{
		{name: "missing_separator", input: "abc\n", wantErr: ingest.ErrMalformedRecord},
		{name: "empty_line", input: "a;1.0\n\nb;2.0\n", wantErr: ingest.ErrMalformedRecord, folded: 1},
		{name: "empty_name", input: ";1.0\n", wantErr: ingest.ErrMalformedRecord},
		{name: "empty_value", input: "a;\n", wantErr: ingest.ErrMalformedValue},
		{name: "not_a_number", input: "a;1.0\nb;warm\n", wantErr: ingest.ErrMalformedValue, folded: 1},
		{name: "nan", input: "a;NaN\n", wantErr: ingest.ErrMalformedValue},
		{name: "finer_than_tenth", input: "a;0.25\na;0.25\n", wantErr: ingest.ErrMalformedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := ingest.ParseChunk([]byte(tt.input), station.NewTable(0))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.folded, n)
		})
	}
}

func TestParseChunk_QuotesAreTruncated(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("x", 4096)

	_, err := ingest.ParseChunk([]byte(line), station.NewTable(0))
	require.ErrorIs(t, err, ingest.ErrMalformedRecord)
	assert.Less(t, len(err.Error()), 256)
}
