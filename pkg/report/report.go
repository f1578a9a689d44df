// Package report renders an aggregated table as the final summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/LetzteFee/1brc/pkg/station"
)

// ErrUnsupportedFormat is returned for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format names an output rendering.
type Format string

// Supported formats. FormatText is the canonical single-line summary.
const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatTable, FormatJSON, FormatYAML}
}

// ParseFormat resolves a format name, case-insensitively. Empty means text.
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatText, nil
	}

	format := Format(strings.ToLower(name))
	for _, f := range Formats() {
		if f == format {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Entry is one finalized row of the summary.
type Entry struct {
	Name  string  `json:"name"  yaml:"name"`
	Min   float64 `json:"min"   yaml:"min"`
	Mean  float64 `json:"mean"  yaml:"mean"`
	Max   float64 `json:"max"   yaml:"max"`
	Count uint64  `json:"count" yaml:"count"`
}

// Entries finalizes table into rows sorted by name in byte order.
func Entries(t station.Table) []Entry {
	names := t.Names()
	entries := make([]Entry, 0, len(names))

	for _, name := range names {
		acc := t[name]
		minV, mean, maxV := acc.Finalize()

		entries = append(entries, Entry{
			Name:  name,
			Min:   minV,
			Mean:  mean,
			Max:   maxV,
			Count: acc.Count,
		})
	}

	return entries
}

// Write renders t to w in the given format.
func Write(w io.Writer, t station.Table, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, Summary(t))
	case FormatTable:
		return writeTable(w, Entries(t))
	case FormatJSON:
		return writeJSON(w, Entries(t))
	case FormatYAML:
		return writeYAML(w, Entries(t))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Summary returns the canonical one-line summary, e.g. "{ a=-5.1/0.2/5.1 }".
func Summary(t station.Table) string {
	return summary(Entries(t))
}

func summary(entries []Entry) string {
	if len(entries) == 0 {
		return "{ }"
	}

	var sb strings.Builder

	sb.WriteString("{ ")

	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(e.Name)
		sb.WriteByte('=')
		sb.WriteString(tenth(e.Min))
		sb.WriteByte('/')
		sb.WriteString(tenth(e.Mean))
		sb.WriteByte('/')
		sb.WriteString(tenth(e.Max))
	}

	sb.WriteString(" }")

	return sb.String()
}

func writeText(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func writeTable(w io.Writer, entries []Entry) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	tbl.AppendHeader(table.Row{"Name", "Min", "Mean", "Max", "Count"})

	var records uint64

	for _, e := range entries {
		tbl.AppendRow(table.Row{e.Name, tenth(e.Min), tenth(e.Mean), tenth(e.Max), e.Count})
		records += e.Count
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d names", len(entries)), "", "", "", records})
	tbl.Render()

	return nil
}

func writeJSON(w io.Writer, entries []Entry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(entries)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, entries []Entry) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err := encoder.Encode(entries)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	return nil
}

func tenth(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
