package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/shpitdev/instrument-master/pkg/instruments"
)

// DefaultFilename is the name the artifact is offered under.
const DefaultFilename = "instruments_master.csv"

// ContentType is the MIME type of the artifact.
const ContentType = "text/csv; charset=utf-8"

// ErrNoRecords is returned when asked to export an empty result set.
var ErrNoRecords = errors.New("no records to export")

// Header returns the union of field names across records in order of first
// appearance. For a single-schema result set this is the first record's schema.
func Header(records []instruments.Record) []string {
	var header []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, name := range r.Fields() {
			if seen[name] {
				continue
			}
			seen[name] = true
			header = append(header, name)
		}
	}
	return header
}

// WriteCSV writes a header row followed by one row per record. Columns a record
// does not have are left empty.
func WriteCSV(w io.Writer, records []instruments.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	header := Header(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, r := range records {
		m := r.Map()
		for i, name := range header {
			row[i] = m[name]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV returns the CSV artifact for records.
func EncodeCSV(records []instruments.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV reads an exported artifact back into its header and rows.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return header, rows, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, rec)
	}
}

// ReadRecords reads an exported artifact back into records keyed by its header.
func ReadRecords(r io.Reader) ([]instruments.Record, error) {
	header, rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	out := make([]instruments.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := instruments.NewRecord(header, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
