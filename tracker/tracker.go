package tracker

import (
	"github.com/rustyeddy/tradeposter/broker"
	"github.com/rustyeddy/tradeposter/id"
	"github.com/rustyeddy/tradeposter/journal"
)

// OrderSource lists the orders currently known for an instrument.
type OrderSource interface {
	ForInstrument(instr string) []broker.Order
}

// Result describes what one fill did.
type Result struct {
	Transition Transition
	NetBefore  int
	NetAfter   int

	// Trade is set on Closed when the cycle was a true round trip;
	// otherwise Err holds ErrIncomplete.
	Trade *journal.TradeRecord
	Err   error

	Brackets []Inference
}

// Tracker follows the signed position of one instrument/account pair and
// turns each flat -> open -> flat cycle into a trade record.
//
// A Tracker is not safe for concurrent use. Each pair needs its own.
type Tracker struct {
	account    string
	instrument string
	detect     bool
	orders     OrderSource

	cycle Cycle
}

type Option func(*Tracker)

// WithBrackets enables TP/SL inference, sweeping orders from src.
func WithBrackets(src OrderSource) Option {
	return func(t *Tracker) {
		t.detect = true
		t.orders = src
	}
}

func New(account, instrument string, opts ...Option) *Tracker {
	t := &Tracker{account: account, instrument: instrument}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Account() string    { return t.account }
func (t *Tracker) Instrument() string { return t.instrument }

// Cycle returns a copy of the current cycle state.
func (t *Tracker) Cycle() Cycle { return t.cycle.clone() }

// Observe applies one fill.
func (t *Tracker) Observe(ex broker.Execution) Result {
	if err := ex.Validate(); err != nil {
		return Result{Err: err, NetBefore: t.cycle.NetQty, NetAfter: t.cycle.NetQty}
	}

	prev := t.cycle.NetQty
	net := prev
	if ex.Order.Action.IsBuy() {
		net += ex.Qty()
	} else {
		net -= ex.Qty()
	}
	res := Result{NetBefore: prev, NetAfter: net}

	switch {
	case prev == 0 && net != 0:
		t.cycle = Cycle{NetQty: net, Direction: broker.DirectionOf(ex.Order.Action)}
		res.Transition = Opened
		res.Brackets = t.sweep()
		t.cycle.buffer(ex)

	case prev != 0 && net == 0:
		t.cycle.NetQty = 0
		t.cycle.Fills = append(t.cycle.Fills, ex)
		res.Transition = Closed
		res.Brackets = t.sweep()
		res.Trade, res.Err = t.compile()
		t.cycle = Cycle{}

	default:
		t.cycle.NetQty = net
		t.cycle.buffer(ex)
	}
	return res
}

// ObserveOrder applies a live order update to the bracket levels of the
// active cycle.
func (t *Tracker) ObserveOrder(o broker.Order) []Inference {
	if !t.detect || !t.cycle.Active() {
		return nil
	}
	if !broker.SameInstrument(o.Instrument, t.instrument) {
		return nil
	}
	return React(&t.cycle, o)
}

func (t *Tracker) sweep() []Inference {
	if !t.detect || t.orders == nil {
		return nil
	}
	return Sweep(&t.cycle, t.orders.ForInstrument(t.instrument))
}

func (t *Tracker) compile() (*journal.TradeRecord, error) {
	c, err := Compile(t.cycle.Fills, t.cycle.EntryQty)
	if err != nil {
		return nil, err
	}

	rec := &journal.TradeRecord{
		Account:    t.account,
		Symbol:     t.instrument,
		Direction:  c.Direction,
		Qty:        c.Qty,
		EntryPrice: c.EntryPrice,
		ExitPrice:  c.ExitPrice,
		EntryTime:  c.EntryTime,
		ExitTime:   c.ExitTime,
		TakeProfit: t.cycle.TP,
		StopLoss:   t.cycle.SL,
	}
	rec.TradeID = id.TradeID(id.TradeKey{
		Account:    rec.Account,
		Symbol:     rec.Symbol,
		EntryTime:  rec.EntryTime,
		ExitTime:   rec.ExitTime,
		EntryPrice: rec.EntryPrice,
		ExitPrice:  rec.ExitPrice,
		Qty:        rec.Qty,
		Tag:        rec.Direction.Tag(),
	})
	return rec, nil
}
