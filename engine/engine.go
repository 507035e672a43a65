package engine

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradeposter/broker"
	"github.com/rustyeddy/tradeposter/market"
	"github.com/rustyeddy/tradeposter/metrics"
	"github.com/rustyeddy/tradeposter/report"
	"github.com/rustyeddy/tradeposter/tracker"
)

// Sink receives finished trades. Submit must not block.
type Sink interface {
	Submit(report.Job) bool
}

type Options struct {
	Account    string
	Instrument string

	Enabled    bool
	DetectTPSL bool

	History *market.History
	Meta    market.InstrumentMeta

	Sink    Sink
	Metrics *metrics.Metrics
	Log     *logrus.Entry
}

// Engine tracks one instrument/account pair. Handlers are called from a
// single goroutine in event order.
type Engine struct {
	opts    Options
	tracker *tracker.Tracker
	book    *broker.OrderBook
	log     *logrus.Entry
}

func New(opts Options) *Engine {
	if opts.History == nil {
		opts.History = market.NewHistory()
	}
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "engine")
	}

	e := &Engine{
		opts: opts,
		book: broker.NewOrderBook(),
		log: opts.Log.WithFields(logrus.Fields{
			"account":    opts.Account,
			"instrument": opts.Instrument,
		}),
	}

	var topts []tracker.Option
	if opts.DetectTPSL {
		topts = append(topts, tracker.WithBrackets(e.book))
	}
	e.tracker = tracker.New(opts.Account, opts.Instrument, topts...)
	return e
}

func (e *Engine) Account() string    { return e.opts.Account }
func (e *Engine) Instrument() string { return e.opts.Instrument }

// Cycle returns a snapshot of the open cycle.
func (e *Engine) Cycle() tracker.Cycle { return e.tracker.Cycle() }

func (e *Engine) accepts(account, instr string) bool {
	if !e.opts.Enabled {
		return false
	}
	if account != "" && !strings.EqualFold(strings.TrimSpace(account), e.opts.Account) {
		return false
	}
	return broker.SameInstrument(instr, e.opts.Instrument)
}

// HandleOrder records an order update and, while a cycle is open, lets it
// refresh the bracket levels.
func (e *Engine) HandleOrder(ev broker.OrderEvent) {
	defer e.recover("order")

	if !e.accepts(ev.Account, ev.Order.Instrument) {
		return
	}
	e.opts.Metrics.Order(e.opts.Account, e.opts.Instrument)

	e.book.Apply(ev.Order)
	for _, inf := range e.tracker.ObserveOrder(ev.Order) {
		e.log.WithFields(logrus.Fields{
			"slot":  inf.Slot.String(),
			"price": inf.Price,
			"rule":  inf.Rule,
			"order": ev.Order.ID,
		}).Debug("bracket updated")
	}
}

// HandleExecution feeds a fill to the tracker and hands a closed trade to
// the sink.
func (e *Engine) HandleExecution(ex broker.Execution) {
	defer e.recover("execution")

	if !e.accepts(ex.Account, ex.Instrument) {
		return
	}
	e.opts.Metrics.Execution(e.opts.Account, e.opts.Instrument)

	res := e.tracker.Observe(ex)
	log := e.log.WithFields(logrus.Fields{
		"net_qty": res.NetAfter,
		"action":  ex.Order.Action.String(),
		"qty":     ex.Qty(),
		"price":   ex.Price,
	})

	switch res.Transition {
	case tracker.None:
		if res.Err != nil {
			log.WithError(res.Err).Warn("execution ignored")
			return
		}
		log.Debug("execution buffered")

	case tracker.Opened:
		e.opts.Metrics.Opened(e.opts.Account, e.opts.Instrument)
		log.WithField("direction", e.tracker.Cycle().Direction.String()).Info("position opened")

	case tracker.Closed:
		e.opts.Metrics.Closed(e.opts.Account, e.opts.Instrument)
		if res.Err != nil {
			if errors.Is(res.Err, tracker.ErrIncomplete) {
				e.opts.Metrics.Incomplete(e.opts.Account, e.opts.Instrument)
			}
			log.WithError(res.Err).Warn("position closed without a trade")
			return
		}
		e.emit(res)
	}
}

func (e *Engine) emit(res tracker.Result) {
	rec := *res.Trade
	if idx := e.opts.History.GetBar(rec.ExitTime); idx >= 0 {
		rec.ExitBar = &idx
	}

	log := e.log.WithFields(logrus.Fields{
		"trade_id":  rec.TradeID,
		"direction": rec.Direction.String(),
		"qty":       rec.Qty,
		"entry":     rec.EntryPrice,
		"exit":      rec.ExitPrice,
	})

	if e.opts.Sink == nil {
		log.Info("trade compiled")
		return
	}
	if e.opts.Sink.Submit(report.Job{Trade: rec, History: e.opts.History, Instrument: e.opts.Meta}) {
		e.opts.Metrics.Emitted(e.opts.Account, e.opts.Instrument)
		log.Info("trade submitted")
	}
}

func (e *Engine) recover(kind string) {
	if r := recover(); r != nil {
		e.opts.Metrics.Panic()
		e.log.WithFields(logrus.Fields{
			"event": kind,
			"stack": string(debug.Stack()),
		}).Error(fmt.Sprintf("handler panic: %v", r))
	}
}
