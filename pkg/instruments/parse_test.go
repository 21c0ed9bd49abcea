package instruments_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/instrument-master/pkg/instruments"
)

const (
	relianceLine = "NSECM|101|EQ|RELIANCE|Reliance Industries|EQ|RELIANCE-EQ|5001|3000|2500|1|0.05|1|1|RELIANCE|INE002A01018|1|100|Reliance|N|N|N"
	optionLine   = "NSEFO|35001|OPTIDX|NIFTY|NIFTY24DEC24000CE|OPTIDX|NIFTY-OPTIDX|2|250|0.05|1800|0.05|25|1|26000|NIFTY|2024-12-26T14:30:00|24000|3|NIFTY 26DEC 24000 CE|1|1|NIFTY24DEC24000CE"
	futureLine   = "NSEFO|35002|FUTIDX|NIFTY|NIFTY24DECFUT|FUTIDX|NIFTY-FUTIDX|1|26500|21500|1800|0.05|25|1|26000|NIFTY|2024-12-26T14:30:00|NIFTY 26DEC FUT|1|1|NIFTY24DECFUT"
)

// syntheticLine builds a line of n fields whose first field is seg.
func syntheticLine(seg string, n int) string {
	fields := make([]string, n)
	fields[0] = seg
	for i := 1; i < n; i++ {
		fields[i] = fmt.Sprintf("v%d", i)
	}
	return strings.Join(fields, "|")
}

func TestParseLine_RelianceCashMarket(t *testing.T) {
	rec, ok := instruments.ParseLine(relianceLine)
	require.True(t, ok)

	assert.Equal(t, instruments.CashMarketSchema(), rec.Fields())
	assert.Equal(t, instruments.NSECM, rec.Segment())

	want := map[string]string{
		"ExchangeSegment":      "NSECM",
		"ExchangeInstrumentID": "101",
		"InstrumentType":       "EQ",
		"Name":                 "RELIANCE",
		"Description":          "Reliance Industries",
		"PriceBand.High":       "3000",
		"PriceBand.Low":        "2500",
		"TickSize":             "0.05",
		"ISIN":                 "INE002A01018",
		"PriceDenominator":     "100",
		"DetailedDescription":  "Reliance",
		"GSMIndicator":         "N",
	}
	for k, v := range want {
		got, ok := rec.Get(k)
		require.True(t, ok, "missing field %s", k)
		assert.Equal(t, v, got, "field %s", k)
	}
}

func TestParseLine_DerivativesFullRow(t *testing.T) {
	rec, ok := instruments.ParseLine(optionLine)
	require.True(t, ok)

	assert.Equal(t, instruments.DerivativesSchema(), rec.Fields())
	strike, _ := rec.Get("StrikePrice")
	optType, _ := rec.Get("OptionType")
	assert.Equal(t, "24000", strike)
	assert.Equal(t, "3", optType)
}

func TestParseLine_DerivativesMissingStrike(t *testing.T) {
	rec, ok := instruments.ParseLine(futureLine)
	require.True(t, ok)
	require.Equal(t, 23, rec.Len())

	m := rec.Map()
	assert.Equal(t, "", m["StrikePrice"])
	assert.Equal(t, "", m["OptionType"])
	assert.Equal(t, "2024-12-26T14:30:00", m["ContractExpiration"])
	assert.Equal(t, "NIFTY 26DEC FUT", m["DisplayName"])
	assert.Equal(t, "NIFTY24DECFUT", m["DetailedDescription"])
	for _, name := range rec.Fields() {
		if name == "StrikePrice" || name == "OptionType" {
			continue
		}
		assert.NotEmpty(t, m[name], "field %s", name)
		assert.NotEqual(t, "None", m[name])
	}
}

func TestParseLine_FieldCounts(t *testing.T) {
	tests := []struct {
		name string
		seg  string
		n    int
		want bool
	}{
		{name: "cash 22", seg: "NSECM", n: 22, want: true},
		{name: "cash 21 is not padded", seg: "BSECM", n: 21, want: false},
		{name: "cash 23", seg: "MSECM", n: 23, want: false},
		{name: "derivatives 23", seg: "NSEFO", n: 23, want: true},
		{name: "derivatives 21 padded", seg: "MCXFO", n: 21, want: true},
		{name: "derivatives 20", seg: "NSEFO", n: 20, want: false},
		{name: "derivatives 22", seg: "BSEFO", n: 22, want: false},
		{name: "derivatives 24", seg: "NCDEX", n: 24, want: false},
		{name: "unlisted but registered BSECO", seg: "BSECO", n: 23, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := instruments.ParseLine(syntheticLine(tt.seg, tt.n))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestParseLine_UnknownSegment(t *testing.T) {
	for _, line := range []string{
		"",
		"nsecm|1|2",
		"XXXX" + strings.TrimPrefix(relianceLine, "NSECM"),
		" NSECM" + strings.TrimPrefix(relianceLine, "NSECM"),
		"ExchangeSegment|ExchangeInstrumentID",
	} {
		_, ok := instruments.ParseLine(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseLine_EveryRegisteredSegment(t *testing.T) {
	for _, seg := range append(instruments.Selectable(), instruments.BSECO) {
		schema, ok := instruments.Lookup(seg)
		require.True(t, ok)

		rec, ok := instruments.ParseLine(syntheticLine(string(seg), len(schema)))
		require.True(t, ok, "segment %s", seg)
		assert.Equal(t, schema, rec.Fields())
		assert.Equal(t, seg, rec.Segment())
	}
}

func TestNormalizeFields(t *testing.T) {
	in := strings.Split(futureLine, "|")
	require.Len(t, in, 21)
	before := append([]string(nil), in...)

	out := instruments.NormalizeFields(in, true)
	require.Len(t, out, 23)
	assert.Equal(t, before, in, "input must not be mutated")
	assert.Equal(t, "", out[instruments.StrikePriceIndex])
	assert.Equal(t, "", out[instruments.OptionTypeIndex])
	assert.Equal(t, in[:instruments.StrikePriceIndex], out[:instruments.StrikePriceIndex])
	assert.Equal(t, in[instruments.StrikePriceIndex:], out[instruments.OptionTypeIndex+1:])

	assert.Equal(t, in, instruments.NormalizeFields(in, false))
	short := in[:20]
	assert.Equal(t, short, instruments.NormalizeFields(short, true))
}

func TestParseFeed(t *testing.T) {
	payload := strings.Join([]string{
		relianceLine,
		"garbage",
		futureLine + "\r",
		syntheticLine("NSEFO", 22),
		optionLine,
	}, "\n") + "\n"

	recs, stats := instruments.ParseFeed(payload)
	require.Len(t, recs, 3)
	assert.Equal(t, "101", recs[0].Values()[1])
	assert.Equal(t, "35002", recs[1].Values()[1])
	assert.Equal(t, "NIFTY24DECFUT", recs[1].Values()[22])
	assert.Equal(t, "35001", recs[2].Values()[1])

	assert.Equal(t, instruments.Stats{Lines: 5, Parsed: 3, Padded: 1, UnknownSegment: 1, FieldCount: 1}, stats)
	assert.Equal(t, 2, stats.Dropped())
}

func TestParseFeed_Empty(t *testing.T) {
	for _, payload := range []string{"", "\n", "   \n  "} {
		recs, stats := instruments.ParseFeed(payload)
		assert.Empty(t, recs)
		assert.Equal(t, 0, stats.Parsed)
	}
}

func TestNewRecord(t *testing.T) {
	_, err := instruments.NewRecord(instruments.Schema{"a", "b"}, []string{"1"})
	require.Error(t, err)

	rec, err := instruments.NewRecord(instruments.Schema{"a", "b"}, []string{"1", "2"})
	require.NoError(t, err)
	v, ok := rec.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = rec.Get("c")
	assert.False(t, ok)
}
