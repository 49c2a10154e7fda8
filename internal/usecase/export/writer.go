package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// Format is an export encoding.
type Format string

// Supported formats.
const (
	CSV    Format = "csv"
	NDJSON Format = "ndjson"
)

// ParseFormat validates a format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", CSV:
		return CSV, nil
	case NDJSON:
		return NDJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidRequest, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == NDJSON {
		return "application/x-ndjson"
	}
	return "text/csv"
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string { return string(f) }

// RecordWriter encodes records onto a stream.
type RecordWriter interface {
	Write(rec domsnp.Record) error
	Flush() error
}

// NewRecordWriter creates a writer for columns. CSV writes the header row immediately.
func NewRecordWriter(w io.Writer, f Format, columns []string) (RecordWriter, error) {
	switch f {
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(columns); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		return &csvWriter{w: cw, columns: columns, row: make([]string, len(columns))}, nil
	case NDJSON:
		return &ndjsonWriter{enc: json.NewEncoder(w), columns: columns}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidRequest, f)
	}
}

type csvWriter struct {
	w       *csv.Writer
	columns []string
	row     []string
}

func (c *csvWriter) Write(rec domsnp.Record) error {
	for i, col := range c.columns {
		v, _ := rec.Get(col)
		c.row[i] = cell(v)
	}
	if err := c.w.Write(c.row); err != nil {
		return fmt.Errorf("write row %s: %w", rec.ID(), err)
	}
	return nil
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// cell renders a value. Missing values are empty; composite values are JSON.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

type ndjsonWriter struct {
	enc     *json.Encoder
	columns []string
}

// Write emits the requested columns that the record carries.
func (n *ndjsonWriter) Write(rec domsnp.Record) error {
	obj := make(map[string]any, len(n.columns))
	for _, col := range n.columns {
		if v, ok := rec.Get(col); ok {
			obj[col] = v
		}
	}
	if err := n.enc.Encode(obj); err != nil {
		return fmt.Errorf("write record %s: %w", rec.ID(), err)
	}
	return nil
}

func (n *ndjsonWriter) Flush() error { return nil }
