package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/tradeposter/broker"
	"github.com/rustyeddy/tradeposter/id"
	"github.com/rustyeddy/tradeposter/journal"
	"github.com/shopspring/decimal"
)

const (
	captionTime = "02-Jan-2006 15:04"
	missing     = "—"
)

// Caption renders the one-line chat summary of a trade:
//
//	[SIM] 04-Mar-2025 15:32 ES 12-25 Buy @100.3333 TP:105 SL:— Qty:3 WON +29 pts +$1450.00
//
// The timestamp is the exit time in loc (local time when nil).
func Caption(env string, rec journal.TradeRecord, pointValue, commission float64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	if env == "" {
		env = "sim"
	}

	side := "Buy"
	if rec.Direction == broker.Short {
		side = "Sell"
	}

	pts := rec.Points()
	net := rec.NetPL(pointValue, commission)

	sPts := id.FormatPrice(pts, 4) + " pts"
	if pts >= 0 {
		sPts = "+" + sPts
	}
	sign := "+"
	if net < 0 {
		sign = "-"
	}
	sUSD := sign + "$" + decimal.NewFromFloat(math.Abs(net)).StringFixed(2)

	return fmt.Sprintf("[%s] %s %s %s @%s TP:%s SL:%s Qty:%d %s %s %s",
		strings.ToUpper(env),
		rec.ExitTime.In(loc).Format(captionTime),
		rec.Symbol,
		side,
		id.FormatPrice(rec.EntryPrice, 4),
		optText(rec.TakeProfit),
		optText(rec.StopLoss),
		rec.Qty,
		journal.Outcome(net),
		sPts,
		sUSD,
	)
}

func optText(p *float64) string {
	if p == nil {
		return missing
	}
	return id.FormatPrice(*p, 4)
}
