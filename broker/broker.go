package broker

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrUnknownAction    = errors.New("unknown order action")
	ErrInvalidExecution = errors.New("invalid execution")
)

// Action is the side of an order as reported by the trading platform.
type Action int

const (
	ActionUnknown Action = iota
	Buy
	BuyToCover
	Sell
	SellShort
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "Buy"
	case BuyToCover:
		return "BuyToCover"
	case Sell:
		return "Sell"
	case SellShort:
		return "SellShort"
	default:
		return "Unknown"
	}
}

// IsBuy reports whether a is buy-class (Buy or BuyToCover).
func (a Action) IsBuy() bool { return a == Buy || a == BuyToCover }

// IsSell reports whether a is sell-class (Sell or SellShort).
func (a Action) IsSell() bool { return a == Sell || a == SellShort }

// ParseAction accepts the platform spellings, case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "buytocover", "buy_to_cover":
		return BuyToCover, nil
	case "sell":
		return Sell, nil
	case "sellshort", "sell_short":
		return SellShort, nil
	}
	return ActionUnknown, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Direction of a position cycle, fixed when the cycle opens.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// Tag is the single letter used in trade ids.
func (d Direction) Tag() string {
	if d == Short {
		return "S"
	}
	return "L"
}

// DirectionOf returns Long for buy-class actions and Short otherwise.
func DirectionOf(a Action) Direction {
	if a.IsBuy() {
		return Long
	}
	return Short
}

// IsEntry reports whether a adds to a position of direction d.
func (d Direction) IsEntry(a Action) bool {
	if d == Long {
		return a.IsBuy()
	}
	return a.IsSell()
}

// IsExit reports whether a reduces a position of direction d.
func (d Direction) IsExit(a Action) bool {
	if d == Long {
		return a.IsSell()
	}
	return a.IsBuy()
}

// OrderState is the lifecycle state carried on order updates.
// The zero value is treated as working.
type OrderState string

const (
	OrderWorking   OrderState = "working"
	OrderFilled    OrderState = "filled"
	OrderCancelled OrderState = "cancelled"
	OrderRejected  OrderState = "rejected"
)

// Terminal reports whether the order can no longer fill.
func (s OrderState) Terminal() bool {
	switch OrderState(strings.ToLower(string(s))) {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	}
	return false
}

// Order is the reference view of a platform order. Zero LimitPrice or
// StopPrice means the price is not set.
type Order struct {
	ID         string
	Instrument string
	Action     Action
	LimitPrice float64
	StopPrice  float64
	Label      string
	State      OrderState
}

type OrderEvent struct {
	Account string
	Order   Order
}

// Execution is a single fill. Quantity may be signed; only its magnitude
// is used, the side comes from Order.Action.
type Execution struct {
	Account    string
	Instrument string
	Order      Order
	Price      float64
	Quantity   int
	Time       time.Time
}

// Qty returns the unsigned fill quantity.
func (e Execution) Qty() int {
	if e.Quantity < 0 {
		return -e.Quantity
	}
	return e.Quantity
}

func (e Execution) Validate() error {
	if strings.TrimSpace(e.Instrument) == "" {
		return fmt.Errorf("%w: missing instrument", ErrInvalidExecution)
	}
	if e.Quantity == 0 {
		return fmt.Errorf("%w: zero quantity", ErrInvalidExecution)
	}
	if math.IsNaN(e.Price) || math.IsInf(e.Price, 0) {
		return fmt.Errorf("%w: price not finite", ErrInvalidExecution)
	}
	if !e.Order.Action.IsBuy() && !e.Order.Action.IsSell() {
		return fmt.Errorf("%w: %w", ErrInvalidExecution, ErrUnknownAction)
	}
	return nil
}

// SameInstrument compares instrument names the way the platform does.
func SameInstrument(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
