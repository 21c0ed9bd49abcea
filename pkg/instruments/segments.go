package instruments

import (
	"fmt"
	"strings"
)

// Segment is an exchange segment code such as NSECM or NSEFO.
type Segment string

const (
	NSECM Segment = "NSECM"
	NSEFO Segment = "NSEFO"
	NSECD Segment = "NSECD"
	NSECO Segment = "NSECO"
	BSECM Segment = "BSECM"
	BSEFO Segment = "BSEFO"
	BSECD Segment = "BSECD"
	BSECO Segment = "BSECO"
	NCDEX Segment = "NCDEX"
	MSECM Segment = "MSECM"
	MSEFO Segment = "MSEFO"
	MSECD Segment = "MSECD"
	MCXFO Segment = "MCXFO"
)

// SchemaKind distinguishes the two feed layouts.
type SchemaKind string

const (
	KindCashMarket  SchemaKind = "cash-market"
	KindDerivatives SchemaKind = "derivatives"
)

// Schema is the ordered list of column names for one feed layout.
type Schema []string

// Positions of the fields that some derivative rows omit.
const (
	StrikePriceIndex = 17
	OptionTypeIndex  = 18
)

var cashMarketSchema = Schema{
	"ExchangeSegment", "ExchangeInstrumentID", "InstrumentType", "Name", "Description", "Series",
	"NameWithSeries", "InstrumentID", "PriceBand.High", "PriceBand.Low", "FreezeQty", "TickSize",
	"LotSize", "Multiplier", "DisplayName", "ISIN", "PriceNumerator", "PriceDenominator",
	"DetailedDescription", "ExtendedSurvIndicator", "CautionIndicator", "GSMIndicator",
}

var derivativesSchema = Schema{
	"ExchangeSegment", "ExchangeInstrumentID", "InstrumentType", "Name", "Description", "Series",
	"NameWithSeries", "InstrumentID", "PriceBand.High", "PriceBand.Low", "FreezeQty", "TickSize",
	"LotSize", "Multiplier", "UnderlyingInstrumentId", "UnderlyingIndexName", "ContractExpiration",
	"StrikePrice", "OptionType", "DisplayName", "PriceNumerator", "PriceDenominator",
	"DetailedDescription",
}

// selectable is the order segments are offered to users in.
var selectable = []Segment{
	NSECM, NSEFO, NSECD, NSECO,
	BSECM, BSEFO, BSECD,
	NCDEX, MSECM, MSEFO, MSECD, MCXFO,
}

// registry is built once and never written after init.
var registry = func() map[Segment]SchemaKind {
	m := map[Segment]SchemaKind{
		NSECM: KindCashMarket,
		BSECM: KindCashMarket,
		MSECM: KindCashMarket,
	}
	for _, seg := range []Segment{NSEFO, BSEFO, NSECD, BSECD, NSECO, BSECO, NCDEX, MSEFO, MSECD, MCXFO} {
		m[seg] = KindDerivatives
	}
	return m
}()

// CashMarketSchema returns a copy of the 22-column cash-market layout.
func CashMarketSchema() Schema {
	return cashMarketSchema.clone()
}

// DerivativesSchema returns a copy of the 23-column derivatives layout.
func DerivativesSchema() Schema {
	return derivativesSchema.clone()
}

// Kind reports which layout a segment uses.
func Kind(seg Segment) (SchemaKind, bool) {
	k, ok := registry[seg]
	return k, ok
}

// Lookup returns the schema registered for seg. The returned slice is a copy.
func Lookup(seg Segment) (Schema, bool) {
	s, ok := schemaFor(seg)
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// IsDerivatives reports whether seg uses the derivatives layout.
func IsDerivatives(seg Segment) bool {
	return registry[seg] == KindDerivatives
}

// Selectable returns the segments a user may request, in display order.
func Selectable() []Segment {
	out := make([]Segment, len(selectable))
	copy(out, selectable)
	return out
}

// ParseSegments validates user supplied codes against Selectable.
//
// Codes are trimmed and upper-cased; blanks and duplicates are dropped and
// first-seen order is kept.
func ParseSegments(raw []string) ([]Segment, error) {
	allowed := make(map[Segment]bool, len(selectable))
	for _, s := range selectable {
		allowed[s] = true
	}

	out := make([]Segment, 0, len(raw))
	seen := make(map[Segment]bool, len(raw))
	for _, r := range raw {
		seg := Segment(strings.ToUpper(strings.TrimSpace(r)))
		if seg == "" {
			continue
		}
		if !allowed[seg] {
			return nil, fmt.Errorf("unknown exchange segment %q", r)
		}
		if seen[seg] {
			continue
		}
		seen[seg] = true
		out = append(out, seg)
	}
	return out, nil
}

// Strings converts segments to their wire representation.
func Strings(segs []Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = string(s)
	}
	return out
}

func schemaFor(seg Segment) (Schema, bool) {
	switch registry[seg] {
	case KindCashMarket:
		return cashMarketSchema, true
	case KindDerivatives:
		return derivativesSchema, true
	default:
		return nil, false
	}
}

func (s Schema) clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Index returns the position of name in s, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}
