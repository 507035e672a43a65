package id

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeposter/market"
)

// TradeKey is the tuple a trade id is derived from.
type TradeKey struct {
	Account    string
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Qty        int
	Tag        string // "L" or "S"
}

// TradeID computes the deterministic trade id: lowercase hex SHA-1 of
// account|symbol|entry time|exit time|entry|exit|qty|tag. Prices carry at
// most 8 fractional digits. Identical keys always hash to the same id; the
// reporting side dedups on it.
func TradeID(k TradeKey) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%s",
		k.Account,
		k.Symbol,
		market.FormatTime(k.EntryTime),
		market.FormatTime(k.ExitTime),
		FormatPrice(k.EntryPrice, 8),
		FormatPrice(k.ExitPrice, 8),
		k.Qty,
		k.Tag,
	)

	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// FormatPrice rounds to at most places fractional digits and drops
// trailing zeros ("100.33333333", "110").
func FormatPrice(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}
