package report

import (
	"math"

	"github.com/rustyeddy/tradeposter/id"
	"github.com/rustyeddy/tradeposter/journal"
	"github.com/rustyeddy/tradeposter/market"
)

// Price is a JSON number rendered with at most 4 fractional digits.
type Price float64

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(id.FormatPrice(float64(p), 4)), nil
}

// OptPrice is a nullable Price.
type OptPrice struct {
	v  float64
	ok bool
}

func Opt(p *float64) OptPrice {
	if p == nil {
		return OptPrice{}
	}
	return OptPrice{v: *p, ok: true}
}

func (o OptPrice) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return Price(o.v).MarshalJSON()
}

type Meta struct {
	TradeID     string   `json:"trade_id"`
	Environment string   `json:"environment"`
	AccountName string   `json:"accountName"`
	Symbol      string   `json:"symbol"`
	Direction   string   `json:"direction"`
	Qty         int      `json:"qty"`
	EntryPrice  Price    `json:"entryPrice"`
	ExitPrice   Price    `json:"exitPrice"`
	TakeProfit  OptPrice `json:"takeProfit"`
	StopLoss    OptPrice `json:"stopLoss"`
	TickSize    Price    `json:"tickSize"`
	TickValue   Price    `json:"tickValue"`
	Commission  Price    `json:"commission"`
	EntryTime   string   `json:"entryTime"`
	ExitTime    string   `json:"exitTime"`
}

type Candle struct {
	T string `json:"t"`
	O Price  `json:"o"`
	H Price  `json:"h"`
	L Price  `json:"l"`
	C Price  `json:"c"`
	V int64  `json:"v"`
}

// Envelope is the document posted for every closed trade.
type Envelope struct {
	Meta         Meta     `json:"meta"`
	CandlesEntry []Candle `json:"candles_entry"`
	CandlesExit  []Candle `json:"candles_exit"`
}

// Settings are the run-wide values an envelope needs besides the trade.
type Settings struct {
	Environment        string
	ContextBars        int
	IncludeExitContext bool
	Commission         float64
}

// BuildEnvelope assembles the envelope for rec. The entry window is centred
// on the bar of the entry time, the exit window on rec.ExitBar; either falls
// back to the current bar when unresolved.
func BuildEnvelope(rec journal.TradeRecord, hist *market.History, meta market.InstrumentMeta, s Settings) Envelope {
	env := Envelope{
		Meta: Meta{
			TradeID:     rec.TradeID,
			Environment: s.Environment,
			AccountName: rec.Account,
			Symbol:      rec.Symbol,
			Direction:   rec.Direction.String(),
			Qty:         rec.Qty,
			EntryPrice:  Price(rec.EntryPrice),
			ExitPrice:   Price(rec.ExitPrice),
			TakeProfit:  Opt(rec.TakeProfit),
			StopLoss:    Opt(rec.StopLoss),
			TickSize:    Price(meta.TickSize),
			TickValue:   Price(meta.TickValue()),
			Commission:  Price(s.Commission),
			EntryTime:   market.FormatTime(rec.EntryTime),
			ExitTime:    market.FormatTime(rec.ExitTime),
		},
		CandlesEntry: []Candle{},
		CandlesExit:  []Candle{},
	}
	if hist == nil {
		return env
	}

	ctx := max(0, s.ContextBars)

	entryBar := hist.GetBar(rec.EntryTime)
	env.CandlesEntry = toCandles(hist.Around(entryBar, ctx))

	if s.IncludeExitContext {
		exitBar := hist.Current()
		if rec.ExitBar != nil && *rec.ExitBar >= 0 {
			exitBar = *rec.ExitBar
		}
		env.CandlesExit = toCandles(hist.Around(exitBar, ctx))
	}
	return env
}

func toCandles(bars []market.Candle) []Candle {
	out := make([]Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, Candle{
			T: market.FormatTime(b.Time),
			O: Price(b.Open),
			H: Price(b.High),
			L: Price(b.Low),
			C: Price(b.Close),
			V: int64(math.Round(b.Volume)),
		})
	}
	return out
}
