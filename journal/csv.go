// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{"trade_id", "account", "symbol", "direction", "qty", "entry_price", "exit_price", "entry_time", "exit_time", "take_profit", "stop_loss", "exit_bar"}

type CSVJournal struct {
	trades *csv.Writer
	tf     *os.File
}

// NewCSV appends to tradesPath, writing the header only when the file is new.
func NewCSV(tradesPath string) (*CSVJournal, error) {
	tf, err := os.OpenFile(tradesPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := tf.Stat()
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	if info.Size() == 0 {
		if err := tw.Write(csvHeader); err != nil {
			tf.Close()
			return nil, err
		}
		tw.Flush()
		if err := tw.Error(); err != nil {
			tf.Close()
			return nil, err
		}
	}

	return &CSVJournal{trades: tw, tf: tf}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Account,
		t.Symbol,
		t.Direction.String(),
		strconv.Itoa(t.Qty),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.EntryTime.UTC().Format(time.RFC3339Nano),
		t.ExitTime.UTC().Format(time.RFC3339Nano),
		optF(t.TakeProfit),
		optF(t.StopLoss),
		optI(t.ExitBar),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	return j.tf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func optF(p *float64) string {
	if p == nil {
		return ""
	}
	return f(*p)
}

func optI(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
