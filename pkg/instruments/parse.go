package instruments

import (
	"fmt"
	"strings"
)

// Delimiter separates fields in a feed line.
const Delimiter = "|"

// Record is one parsed feed line: values paired positionally with a schema.
type Record struct {
	schema Schema
	values []string
}

// NewRecord pairs schema with values. Both must have the same length.
func NewRecord(schema Schema, values []string) (Record, error) {
	if len(schema) != len(values) {
		return Record{}, fmt.Errorf("record has %d values for %d fields", len(values), len(schema))
	}
	return Record{schema: schema.clone(), values: append([]string(nil), values...)}, nil
}

// Len returns the number of fields in the record.
func (r Record) Len() int { return len(r.values) }

// Fields returns the record's column names in order.
func (r Record) Fields() Schema { return r.schema.clone() }

// Values returns the record's raw values in column order.
func (r Record) Values() []string { return append([]string(nil), r.values...) }

// Get returns the value stored under name.
func (r Record) Get(name string) (string, bool) {
	i := r.schema.Index(name)
	if i < 0 {
		return "", false
	}
	return r.values[i], true
}

// Segment returns the ExchangeSegment column.
func (r Record) Segment() Segment {
	v, _ := r.Get("ExchangeSegment")
	return Segment(v)
}

// Map returns the record as a field name to value map.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for i, name := range r.schema {
		out[name] = r.values[i]
	}
	return out
}

// NormalizeFields reconciles a derivatives row that omits StrikePrice and
// OptionType: a 21-field derivatives row gets two empty values inserted at
// those positions. Any other input is returned as a copy, unchanged.
func NormalizeFields(fields []string, derivatives bool) []string {
	if !derivatives || len(fields) != len(derivativesSchema)-2 {
		return append([]string(nil), fields...)
	}
	out := make([]string, 0, len(fields)+2)
	out = append(out, fields[:StrikePriceIndex]...)
	out = append(out, "", "")
	out = append(out, fields[StrikePriceIndex:]...)
	return out
}

// ParseLine maps one pipe-delimited line onto its segment schema.
//
// It returns false when the segment is unknown or the field count does not
// match the schema after normalization. Values are never trimmed or coerced.
func ParseLine(line string) (Record, bool) {
	rec, outcome := parseLine(line)
	return rec, outcome == outcomeParsed || outcome == outcomePadded
}

type outcome int

const (
	outcomeParsed outcome = iota
	outcomePadded
	outcomeUnknownSegment
	outcomeFieldCount
)

func parseLine(line string) (Record, outcome) {
	fields := strings.Split(line, Delimiter)
	seg := Segment(fields[0])
	schema, ok := schemaFor(seg)
	if !ok {
		return Record{}, outcomeUnknownSegment
	}

	normalized := NormalizeFields(fields, IsDerivatives(seg))
	if len(normalized) != len(schema) {
		return Record{}, outcomeFieldCount
	}

	result := outcomeParsed
	if len(normalized) != len(fields) {
		result = outcomePadded
	}
	// Records share the registry's schema slice; accessors hand out copies.
	return Record{schema: schema, values: normalized}, result
}

// Stats counts how the lines of one feed were handled.
type Stats struct {
	Lines          int
	Parsed         int
	Padded         int
	UnknownSegment int
	FieldCount     int
}

// Dropped is the number of lines that produced no record.
func (s Stats) Dropped() int {
	return s.UnknownSegment + s.FieldCount
}

// ParseFeed parses a newline separated feed payload, keeping input order.
// Lines that do not parse are skipped and only show up in the returned Stats.
// A trailing "\r" is treated as part of a CRLF line ending and removed; it is
// the only byte ParseFeed strips from a line, so field values stay untrimmed.
func ParseFeed(payload string) ([]Record, Stats) {
	var stats Stats
	var out []Record
	for _, line := range strings.Split(strings.TrimSpace(payload), "\n") {
		line = strings.TrimSuffix(line, "\r")
		stats.Lines++

		rec, res := parseLine(line)
		switch res {
		case outcomeUnknownSegment:
			stats.UnknownSegment++
			continue
		case outcomeFieldCount:
			stats.FieldCount++
			continue
		case outcomePadded:
			stats.Padded++
		}
		stats.Parsed++
		out = append(out, rec)
	}
	return out, stats
}
