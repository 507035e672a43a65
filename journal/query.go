package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradeposter/broker"
)

const selectTrade = `
	SELECT trade_id, account, symbol, direction, qty, entry_price, exit_price, entry_time, exit_time, take_profit, stop_loss, exit_bar
	FROM trades`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var (
		rec       TradeRecord
		direction string
		tp, sl    sql.NullFloat64
		exitBar   sql.NullInt64
	)

	err := s.Scan(
		&rec.TradeID,
		&rec.Account,
		&rec.Symbol,
		&direction,
		&rec.Qty,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.EntryTime,
		&rec.ExitTime,
		&tp,
		&sl,
		&exitBar,
	)
	if err != nil {
		return TradeRecord{}, err
	}

	if strings.EqualFold(direction, broker.Short.String()) {
		rec.Direction = broker.Short
	}
	if tp.Valid {
		v := tp.Float64
		rec.TakeProfit = &v
	}
	if sl.Valid {
		v := sl.Float64
		rec.StopLoss = &v
	}
	if exitBar.Valid {
		v := int(exitBar.Int64)
		rec.ExitBar = &v
	}
	return rec, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(selectTrade+` WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose exit_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(selectTrade+`
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
