package tracker

import (
	"errors"
	"time"

	"github.com/rustyeddy/tradeposter/broker"
)

// ErrIncomplete is returned when a cycle closed without fills on both
// the entry and the exit side.
var ErrIncomplete = errors.New("incomplete round trip")

// Compiled is the price/time summary of a closed cycle.
type Compiled struct {
	Direction  broker.Direction
	Qty        int
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
}

type bucket struct {
	notional float64
	qty      int
	first    time.Time
	last     time.Time
}

func (b *bucket) add(ex broker.Execution) {
	q := ex.Qty()
	b.notional += ex.Price * float64(q)
	if b.qty == 0 || ex.Time.Before(b.first) {
		b.first = ex.Time
	}
	if b.qty == 0 || ex.Time.After(b.last) {
		b.last = ex.Time
	}
	b.qty += q
}

func (b *bucket) avg() float64 {
	return b.notional / float64(b.qty)
}

// Compile turns the fills of a closed cycle into volume-weighted entry and
// exit prices. Direction comes from the first fill. entryQty is the entry
// quantity accumulated while the cycle was open; at least 1 is reported.
func Compile(fills []broker.Execution, entryQty int) (Compiled, error) {
	if len(fills) == 0 {
		return Compiled{}, ErrIncomplete
	}

	var buys, sells bucket
	for _, ex := range fills {
		if ex.Qty() == 0 {
			continue
		}
		switch {
		case ex.Order.Action.IsBuy():
			buys.add(ex)
		case ex.Order.Action.IsSell():
			sells.add(ex)
		}
	}

	dir := broker.DirectionOf(fills[0].Order.Action)
	entry, exit := &buys, &sells
	if dir == broker.Short {
		entry, exit = &sells, &buys
	}

	if entry.qty == 0 || exit.qty == 0 {
		return Compiled{}, ErrIncomplete
	}

	return Compiled{
		Direction:  dir,
		Qty:        max(1, entryQty),
		EntryPrice: entry.avg(),
		ExitPrice:  exit.avg(),
		EntryTime:  entry.first,
		ExitTime:   exit.last,
	}, nil
}
