package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/LetzteFee/1brc/pkg/station"
)

// Record errors. Both are fatal for the run: a broken record usually means
// the line alignment itself cannot be trusted.
var (
	// ErrMalformedRecord is returned for a line without a field separator.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMalformedValue is returned when the value field is not a decimal number.
	ErrMalformedValue = errors.New("malformed value")
)

const (
	fieldSeparator = ';'
	lineTerminator = '\n'
	carriageReturn = '\r'

	// maxQuotedLine limits how much of an offending line ends up in an error.
	maxQuotedLine = 128
)

var separator = []byte{fieldSeparator}

// ParseChunk folds every record of data into table and returns the number of
// records folded. A trailing "\r" on a line is ignored. On error the table
// may hold part of the chunk and must be discarded.
func ParseChunk(data []byte, table station.Table) (int, error) {
	records := 0

	for len(data) > 0 {
		var line []byte

		if idx := bytes.IndexByte(data, lineTerminator); idx >= 0 {
			line, data = data[:idx], data[idx+1:]
		} else {
			line, data = data, nil
		}

		if n := len(line); n > 0 && line[n-1] == carriageReturn {
			line = line[:n-1]
		}

		name, field, ok := bytes.Cut(line, separator)
		if !ok || len(name) == 0 {
			return records, fmt.Errorf("%w: %q", ErrMalformedRecord, quote(line))
		}

		value, err := station.ParseValue(field)
		if err != nil {
			return records, fmt.Errorf("%w: record %q: %w", ErrMalformedValue, quote(line), err)
		}

		table.Observe(name, value)

		records++
	}

	return records, nil
}

func quote(line []byte) []byte {
	if len(line) > maxQuotedLine {
		return line[:maxQuotedLine]
	}

	return line
}
