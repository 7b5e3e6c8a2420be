// Package output renders discovery results as tables, JSON or plain text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Format is the output format requested by the user.
type Format string

// Output format constants supported by the --output flag.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// Formats lists every supported format, in the order shown in help text.
var Formats = []Format{FormatTable, FormatJSON, FormatPlain}

// ParseFormat validates s against the supported formats.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid output format %q: must be \"table\", \"json\", or \"plain\"", s)
}

// TableFormattable results know how to render themselves as an ASCII table.
type TableFormattable interface {
	WriteTable(w io.Writer) error
}

// PlainFormattable results render one candidate per line, for piping into
// other tools.
type PlainFormattable interface {
	WritePlain(w io.Writer) error
}

// Write dispatches a result to the appropriate formatter.
func Write(w io.Writer, format Format, result any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatTable:
		tf, ok := result.(TableFormattable)
		if !ok {
			return fmt.Errorf("result type %T does not support table output", result)
		}
		return tf.WriteTable(w)
	case FormatPlain:
		pf, ok := result.(PlainFormattable)
		if !ok {
			return fmt.Errorf("result type %T does not support plain output", result)
		}
		return pf.WritePlain(w)
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}
