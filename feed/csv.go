package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradeposter/market"
)

// RowError is a malformed row. The feed can continue past it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// CSVFeed replays recorded events.
//
// Order and execution rows:
//
//	time,kind,account,instrument,action,qty,price,limit,stop,label,order_id,state
//
// Bar rows:
//
//	time,bar,account,instrument,open,high,low,close,volume
//
// A header row is allowed. Trailing columns may be omitted.
type CSVFeed struct {
	c    io.Closer
	r    *csv.Reader
	from time.Time
	to   time.Time
	line int

	sawFirst bool
}

func NewCSVFeed(path string, from, to time.Time) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := NewCSVReader(f, from, to)
	feed.c = f
	return feed, nil
}

func NewCSVReader(r io.Reader, from, to time.Time) *CSVFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVFeed{r: cr, from: from, to: to}
}

func (f *CSVFeed) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

// Next returns the next event inside the time filter. ok is false at end
// of input. A *RowError leaves the feed usable.
func (f *CSVFeed) Next() (Event, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Event{}, false, nil
		}
		f.line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return Event{}, false, &RowError{Line: f.line, Err: err}
			}
			return Event{}, false, err
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		ev, err := parseRow(row)
		if err != nil {
			return Event{}, false, &RowError{Line: f.line, Err: err}
		}
		if !inRange(ev.Time, f.from, f.to) {
			continue
		}
		return ev, true, nil
	}
}

// Run sends every event to out and closes it when the file is exhausted
// or ctx is done. Malformed rows are logged and skipped.
func (f *CSVFeed) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	log := logrus.WithField("component", "feed.csv")

	for {
		ev, ok, err := f.Next()
		if err != nil {
			var rerr *RowError
			if errors.As(err, &rerr) {
				log.WithError(err).Warn("skipping row")
				continue
			}
			return err
		}
		if !ok {
			return nil
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func col(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseRow(row []string) (Event, error) {
	if len(row) < 4 {
		return Event{}, fmt.Errorf("expected at least 4 columns, got %d", len(row))
	}
	t, err := market.ParseTime(row[0])
	if err != nil {
		return Event{}, err
	}

	ev := Event{
		Kind:       Kind(strings.ToLower(col(row, 1))),
		Time:       t,
		Account:    col(row, 2),
		Instrument: col(row, 3),
	}

	switch ev.Kind {
	case KindBar:
		var vals [5]float64
		for i := range vals {
			if vals[i], err = parseFloat(col(row, 4+i)); err != nil {
				return Event{}, err
			}
		}
		ev.Bar = &Bar{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}

	case KindOrder, KindExecution:
		ev.Action = col(row, 4)
		if s := col(row, 5); s != "" {
			if ev.Qty, err = strconv.Atoi(s); err != nil {
				return Event{}, fmt.Errorf("bad qty %q: %w", s, err)
			}
		}
		if ev.Price, err = parseFloat(col(row, 6)); err != nil {
			return Event{}, err
		}
		if ev.Limit, err = parseFloat(col(row, 7)); err != nil {
			return Event{}, err
		}
		if ev.Stop, err = parseFloat(col(row, 8)); err != nil {
			return Event{}, err
		}
		ev.Label = col(row, 9)
		ev.OrderID = col(row, 10)
		ev.State = col(row, 11)
	}

	if err := ev.Valid(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// parseFloat treats an empty field as zero (unset price).
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad number %q: not finite", s)
	}
	return v, nil
}
