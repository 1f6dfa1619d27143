package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gymcheckin/internal/domain"
)

// CSVHeader is the export column contract: at, memberId, name, type.
var CSVHeader = []string{"at", "memberId", "name", "type"}

// FilterHistory returns the events of log that pass filter, in log order.
func FilterHistory(log []domain.AttendanceEvent, filter domain.HistoryFilter) []domain.AttendanceEvent {
	out := make([]domain.AttendanceEvent, 0, len(log))
	for _, e := range log {
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// WriteCSV writes rows with a header. Every field is wrapped in double quotes
// and embedded quotes are doubled.
func WriteCSV(w io.Writer, rows []domain.HistoryRow) error {
	if err := writeCSVRecord(w, CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.At.UTC().Format(time.RFC3339Nano),
			r.MemberID,
			r.Name,
			string(r.Kind),
		}
		if err := writeCSVRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVRecord(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// ParseCSV reads an export produced by WriteCSV. Quoted fields come back
// byte for byte, carriage returns included.
func ParseCSV(r io.Reader) ([]domain.HistoryRow, error) {
	cr := &csvRecordReader{r: bufio.NewReader(r)}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(CSVHeader) {
		return nil, fmt.Errorf("%w: header has %d columns", domain.ErrInvalidInput, len(header))
	}
	for i, h := range CSVHeader {
		if header[i] != h {
			return nil, fmt.Errorf("%w: unexpected column %q at %d", domain.ErrInvalidInput, header[i], i)
		}
	}
	var rows []domain.HistoryRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(rec) != len(CSVHeader) {
			return nil, fmt.Errorf("%w: record %d has %d fields", domain.ErrInvalidInput, cr.record, len(rec))
		}
		at, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", domain.ErrInvalidInput, rec[0])
		}
		kind := domain.Kind(rec[3])
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: bad type %q", domain.ErrInvalidInput, rec[3])
		}
		rows = append(rows, domain.HistoryRow{At: at, MemberID: rec[1], Name: rec[2], Kind: kind})
	}
	return rows, nil
}

// csvRecordReader reads RFC 4180 records and keeps "\r\n" inside quoted
// fields as is. encoding/csv rewrites it to "\n".
type csvRecordReader struct {
	r      *bufio.Reader
	record int
}

// Read returns the next record, or io.EOF when the input is exhausted.
func (c *csvRecordReader) Read() ([]string, error) {
	var (
		rec      []string
		field    strings.Builder
		inQuotes bool
		quoted   bool
		started  bool
	)
	c.record++
	for {
		b, err := c.r.ReadByte()
		if errors.Is(err, io.EOF) {
			if inQuotes {
				return nil, fmt.Errorf("%w: unterminated quoted field in record %d", domain.ErrInvalidInput, c.record)
			}
			if !started {
				return nil, io.EOF
			}
			return append(rec, field.String()), nil
		}
		if err != nil {
			return nil, err
		}
		started = true

		if inQuotes {
			if b == '"' {
				if next, err := c.r.Peek(1); err == nil && next[0] == '"' {
					_, _ = c.r.ReadByte()
					field.WriteByte('"')
					continue
				}
				inQuotes = false
				continue
			}
			field.WriteByte(b)
			continue
		}

		switch b {
		case '"':
			if quoted || field.Len() > 0 {
				return nil, fmt.Errorf("%w: stray quote in record %d", domain.ErrInvalidInput, c.record)
			}
			inQuotes, quoted = true, true
		case ',':
			rec = append(rec, field.String())
			field.Reset()
			quoted = false
		case '\r':
			if next, err := c.r.Peek(1); err == nil && next[0] == '\n' {
				continue
			}
			return nil, fmt.Errorf("%w: bare carriage return in record %d", domain.ErrInvalidInput, c.record)
		case '\n':
			return append(rec, field.String()), nil
		default:
			if quoted {
				return nil, fmt.Errorf("%w: text after closing quote in record %d", domain.ErrInvalidInput, c.record)
			}
			field.WriteByte(b)
		}
	}
}
