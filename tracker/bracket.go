package tracker

import (
	"strings"

	"github.com/rustyeddy/tradeposter/broker"
)

// Slot names which bracket level a price was assigned to.
type Slot int

const (
	TakeProfit Slot = iota
	StopLoss
)

func (s Slot) String() string {
	if s == StopLoss {
		return "SL"
	}
	return "TP"
}

// Inference records one bracket assignment, for logging.
type Inference struct {
	Slot  Slot
	Price float64
	Rule  string // "name", "type" or "sweep"
}

type pricePreference int

const (
	limitFirst pricePreference = iota
	stopFirst
)

type labelRule struct {
	markers []string
	slot    Slot
	prefer  pricePreference
}

// labelRules are evaluated in order; the first rule whose marker appears in
// the lower-cased order label wins.
var labelRules = []labelRule{
	{markers: []string{"target", "profit"}, slot: TakeProfit, prefer: limitFirst},
	{markers: []string{"stop"}, slot: StopLoss, prefer: stopFirst},
}

func (r labelRule) matches(label string) bool {
	for _, m := range r.markers {
		if strings.Contains(label, m) {
			return true
		}
	}
	return false
}

func (r labelRule) price(o broker.Order) (float64, bool) {
	first, second := o.LimitPrice, o.StopPrice
	if r.prefer == stopFirst {
		first, second = second, first
	}
	if first > 0 {
		return first, true
	}
	if second > 0 {
		return second, true
	}
	return 0, false
}

func (c *Cycle) set(s Slot, v float64) {
	p := &v
	if s == StopLoss {
		c.SL = p
		return
	}
	c.TP = p
}

func (c *Cycle) slot(s Slot) *float64 {
	if s == StopLoss {
		return c.SL
	}
	return c.TP
}

// React applies a live order update to the active cycle. Assignments
// overwrite earlier values: the update is the latest state of a working
// order. Orders on the entry side are ignored.
func React(c *Cycle, o broker.Order) []Inference {
	if !c.Active() || !c.Direction.IsExit(o.Action) {
		return nil
	}

	label := strings.ToLower(o.Label)
	for _, r := range labelRules {
		if !r.matches(label) {
			continue
		}
		v, ok := r.price(o)
		if !ok {
			return nil
		}
		c.set(r.slot, v)
		return []Inference{{Slot: r.slot, Price: v, Rule: "name"}}
	}

	var out []Inference
	if o.LimitPrice > 0 {
		c.set(TakeProfit, o.LimitPrice)
		out = append(out, Inference{Slot: TakeProfit, Price: o.LimitPrice, Rule: "type"})
	}
	if o.StopPrice > 0 {
		c.set(StopLoss, o.StopPrice)
		out = append(out, Inference{Slot: StopLoss, Price: o.StopPrice, Rule: "type"})
	}
	return out
}

// Sweep fills still-empty bracket slots from the exit-side orders already
// known for the instrument. It never replaces a value that is set.
func Sweep(c *Cycle, orders []broker.Order) []Inference {
	var out []Inference
	for _, o := range orders {
		if !c.Direction.IsExit(o.Action) {
			continue
		}
		if o.LimitPrice > 0 && c.slot(TakeProfit) == nil {
			c.set(TakeProfit, o.LimitPrice)
			out = append(out, Inference{Slot: TakeProfit, Price: o.LimitPrice, Rule: "sweep"})
		}
		if o.StopPrice > 0 && c.slot(StopLoss) == nil {
			c.set(StopLoss, o.StopPrice)
			out = append(out, Inference{Slot: StopLoss, Price: o.StopPrice, Rule: "sweep"})
		}
	}
	return out
}
