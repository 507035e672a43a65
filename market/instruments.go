// market/instruments.go
package market

import "strings"

type InstrumentMeta struct {
	Root       string
	TickSize   float64
	PointValue float64
}

// TickValue is the cash value of one tick for one contract.
func (m InstrumentMeta) TickValue() float64 {
	return m.TickSize * m.PointValue
}

var Instruments = map[string]InstrumentMeta{
	"ES":  {Root: "ES", TickSize: 0.25, PointValue: 50},
	"MES": {Root: "MES", TickSize: 0.25, PointValue: 5},
	"NQ":  {Root: "NQ", TickSize: 0.25, PointValue: 20},
	"MNQ": {Root: "MNQ", TickSize: 0.25, PointValue: 2},
	"YM":  {Root: "YM", TickSize: 1, PointValue: 5},
	"RTY": {Root: "RTY", TickSize: 0.1, PointValue: 50},
	"CL":  {Root: "CL", TickSize: 0.01, PointValue: 1000},
	"GC":  {Root: "GC", TickSize: 0.1, PointValue: 100},
}

var defaultMeta = InstrumentMeta{TickSize: 0.25, PointValue: 1}

// Root returns the product root of a full instrument name ("ES 12-25" -> "ES").
func Root(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	return s
}

// LookupInstrument resolves metadata for symbol; overrides are keyed by
// root or full name and win over the built-in table.
func LookupInstrument(symbol string, overrides map[string]InstrumentMeta) InstrumentMeta {
	root := Root(symbol)
	for _, key := range []string{strings.ToUpper(strings.TrimSpace(symbol)), root} {
		if m, ok := overrides[key]; ok {
			if m.Root == "" {
				m.Root = root
			}
			return m
		}
	}
	if m, ok := Instruments[root]; ok {
		return m
	}
	m := defaultMeta
	m.Root = root
	return m
}
