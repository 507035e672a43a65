package tracker

import "github.com/rustyeddy/tradeposter/broker"

// Transition is what a single fill did to the position.
type Transition int

const (
	None Transition = iota
	Opened
	Closed
)

func (t Transition) String() string {
	switch t {
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	default:
		return "none"
	}
}

// Cycle is the state of one flat -> open -> flat round trip.
type Cycle struct {
	NetQty    int
	Direction broker.Direction
	Fills     []broker.Execution
	EntryQty  int
	TP        *float64
	SL        *float64
}

func (c *Cycle) Active() bool { return c.NetQty != 0 }

func (c *Cycle) buffer(ex broker.Execution) {
	c.Fills = append(c.Fills, ex)
	if c.Direction.IsEntry(ex.Order.Action) {
		c.EntryQty += ex.Qty()
	}
}

func (c Cycle) clone() Cycle {
	out := c
	out.Fills = append([]broker.Execution(nil), c.Fills...)
	if c.TP != nil {
		v := *c.TP
		out.TP = &v
	}
	if c.SL != nil {
		v := *c.SL
		out.SL = &v
	}
	return out
}
