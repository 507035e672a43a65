package broker

import (
	"fmt"
	"strings"
)

// OrderBook keeps the latest known state of every live order seen on an
// account. Orders reaching a terminal state are dropped.
//
// Not safe for concurrent use; it is owned by a single engine.
type OrderBook struct {
	orders map[string]Order
	order  []string
}

func NewOrderBook() *OrderBook {
	return &OrderBook{orders: make(map[string]Order)}
}

// Apply records an order update. Orders without an id are keyed by their
// content, so a repeated update replaces the entry and a terminal update
// with the same fields removes it.
func (b *OrderBook) Apply(o Order) {
	key := o.ID
	if key == "" {
		key = contentKey(o)
	}

	if o.State.Terminal() {
		b.remove(key)
		return
	}

	if _, ok := b.orders[key]; !ok {
		b.order = append(b.order, key)
	}
	b.orders[key] = o
}

func contentKey(o Order) string {
	return fmt.Sprintf("~%s|%s|%g|%g|%s",
		strings.ToLower(strings.TrimSpace(o.Instrument)),
		o.Action,
		o.LimitPrice,
		o.StopPrice,
		strings.ToLower(strings.TrimSpace(o.Label)),
	)
}

func (b *OrderBook) remove(key string) {
	if _, ok := b.orders[key]; !ok {
		return
	}
	delete(b.orders, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// ForInstrument returns the known orders on instr in first-seen order.
func (b *OrderBook) ForInstrument(instr string) []Order {
	var out []Order
	for _, k := range b.order {
		o := b.orders[k]
		if SameInstrument(o.Instrument, instr) {
			out = append(out, o)
		}
	}
	return out
}

func (b *OrderBook) Len() int { return len(b.orders) }
