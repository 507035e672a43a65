package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradeposter/broker"
	"github.com/rustyeddy/tradeposter/market"
)

type Kind string

const (
	KindOrder     Kind = "order"
	KindExecution Kind = "execution"
	KindBar       Kind = "bar"
)

// Event is the wire form shared by every source. Order and execution
// events use the order fields; bar events carry Bar.
type Event struct {
	Kind       Kind      `json:"kind"`
	Time       time.Time `json:"time"`
	Account    string    `json:"account"`
	Instrument string    `json:"instrument"`

	Action  string  `json:"action,omitempty"`
	Qty     int     `json:"qty,omitempty"`
	Price   float64 `json:"price,omitempty"`
	Limit   float64 `json:"limit,omitempty"`
	Stop    float64 `json:"stop,omitempty"`
	Label   string  `json:"label,omitempty"`
	OrderID string  `json:"order_id,omitempty"`
	State   string  `json:"state,omitempty"`

	Bar *Bar `json:"bar,omitempty"`
}

type Bar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (e Event) order() (broker.Order, error) {
	a, err := broker.ParseAction(e.Action)
	if err != nil {
		return broker.Order{}, err
	}
	return broker.Order{
		ID:         e.OrderID,
		Instrument: e.Instrument,
		Action:     a,
		LimitPrice: e.Limit,
		StopPrice:  e.Stop,
		Label:      e.Label,
		State:      broker.OrderState(strings.ToLower(strings.TrimSpace(e.State))),
	}, nil
}

func (e Event) OrderEvent() (broker.OrderEvent, error) {
	if e.Kind != KindOrder {
		return broker.OrderEvent{}, fmt.Errorf("not an order event: %q", e.Kind)
	}
	o, err := e.order()
	if err != nil {
		return broker.OrderEvent{}, err
	}
	return broker.OrderEvent{Account: e.Account, Order: o}, nil
}

func (e Event) Execution() (broker.Execution, error) {
	if e.Kind != KindExecution {
		return broker.Execution{}, fmt.Errorf("not an execution event: %q", e.Kind)
	}
	o, err := e.order()
	if err != nil {
		return broker.Execution{}, err
	}
	ex := broker.Execution{
		Account:    e.Account,
		Instrument: e.Instrument,
		Order:      o,
		Price:      e.Price,
		Quantity:   e.Qty,
		Time:       e.Time,
	}
	return ex, ex.Validate()
}

func (e Event) Candle() (market.Candle, error) {
	if e.Kind != KindBar || e.Bar == nil {
		return market.Candle{}, fmt.Errorf("not a bar event: %q", e.Kind)
	}
	return market.Candle{
		Time:   e.Time,
		Open:   e.Bar.Open,
		High:   e.Bar.High,
		Low:    e.Bar.Low,
		Close:  e.Bar.Close,
		Volume: e.Bar.Volume,
	}, nil
}

// Valid reports whether the event has the fields its kind needs.
func (e Event) Valid() error {
	switch e.Kind {
	case KindOrder, KindExecution:
		if strings.TrimSpace(e.Instrument) == "" {
			return fmt.Errorf("%s event without instrument", e.Kind)
		}
	case KindBar:
		if e.Bar == nil || strings.TrimSpace(e.Instrument) == "" {
			return fmt.Errorf("bar event without instrument or prices")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}
