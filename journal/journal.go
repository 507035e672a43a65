// journal/journal.go
package journal

import (
	"time"

	"github.com/rustyeddy/tradeposter/broker"
)

// TradeRecord is one closed round trip. TakeProfit, StopLoss and ExitBar
// are nil when they could not be determined.
type TradeRecord struct {
	TradeID    string
	Account    string
	Symbol     string
	Direction  broker.Direction
	Qty        int
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	TakeProfit *float64
	StopLoss   *float64
	ExitBar    *int
}

// PointsPerContract is the favourable price move per contract.
func (t TradeRecord) PointsPerContract() float64 {
	if t.Direction == broker.Short {
		return t.EntryPrice - t.ExitPrice
	}
	return t.ExitPrice - t.EntryPrice
}

// Points is the total favourable move across all contracts.
func (t TradeRecord) Points() float64 {
	return t.PointsPerContract() * float64(max(1, t.Qty))
}

// NetPL converts points to cash and subtracts a per-contract commission.
func (t TradeRecord) NetPL(pointValue, commissionPerContract float64) float64 {
	gross := t.Points() * pointValue
	return gross - commissionPerContract*float64(max(1, t.Qty))
}

// Outcome classifies a net result as WON, LOSS or FLAT.
func Outcome(net float64) string {
	switch {
	case net > 0:
		return "WON"
	case net < 0:
		return "LOSS"
	}
	return "FLAT"
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}
