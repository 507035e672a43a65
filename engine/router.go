package engine

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradeposter/feed"
	"github.com/rustyeddy/tradeposter/market"
	"github.com/rustyeddy/tradeposter/metrics"
)

type RouterOptions struct {
	// Account is the tracked account.
	Account string

	// KnownAccounts, when set, is the list of accounts available on the
	// platform. A target account missing from it leaves the router inert.
	KnownAccounts []string

	// Instruments limits tracking to these instruments; empty tracks every
	// instrument traded on the account.
	Instruments []string

	Enabled    bool
	DetectTPSL bool

	Overrides map[string]market.InstrumentMeta

	Sink    Sink
	Metrics *metrics.Metrics
	Log     *logrus.Entry
}

// Router fans one ordered event stream out to one Engine per
// instrument/account pair. It is driven by a single goroutine.
type Router struct {
	opts      RouterOptions
	engines   map[string]*Engine
	histories map[string]*market.History
	inert     bool
	log       *logrus.Entry
}

func NewRouter(opts RouterOptions) *Router {
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "router")
	}
	r := &Router{
		opts:      opts,
		engines:   make(map[string]*Engine),
		histories: make(map[string]*market.History),
		log:       opts.Log,
	}

	if !opts.Enabled {
		r.log.Info("posting disabled; events are ignored")
	}
	if len(opts.KnownAccounts) > 0 && !containsFold(opts.KnownAccounts, opts.Account) {
		r.inert = true
		r.log.WithField("account", opts.Account).Warn("account not found; tracking disabled")
	}
	return r
}

func Key(account, instrument string) string {
	return strings.ToLower(strings.TrimSpace(account)) + "|" + strings.ToLower(strings.TrimSpace(instrument))
}

// Inert reports whether the router ignores all order and execution events.
func (r *Router) Inert() bool { return r.inert }

// History returns the bar history of instr, creating it on first use.
// Histories are shared by every account trading the instrument.
func (r *Router) History(instr string) *market.History {
	k := strings.ToLower(strings.TrimSpace(instr))
	h, ok := r.histories[k]
	if !ok {
		h = market.NewHistory()
		r.histories[k] = h
	}
	return h
}

// SetHistory installs preloaded bars for instr.
func (r *Router) SetHistory(instr string, h *market.History) {
	r.histories[strings.ToLower(strings.TrimSpace(instr))] = h
}

// Engine returns the engine for a pair if one has been started.
func (r *Router) Engine(account, instr string) (*Engine, bool) {
	e, ok := r.engines[Key(account, instr)]
	return e, ok
}

func (r *Router) tracked(account, instr string) bool {
	if r.inert || !r.opts.Enabled {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(account), strings.TrimSpace(r.opts.Account)) {
		return false
	}
	return len(r.opts.Instruments) == 0 || containsFold(r.opts.Instruments, instr)
}

func (r *Router) engine(account, instr string) *Engine {
	k := Key(account, instr)
	if e, ok := r.engines[k]; ok {
		return e
	}
	e := New(Options{
		Account:    strings.TrimSpace(account),
		Instrument: strings.TrimSpace(instr),
		Enabled:    r.opts.Enabled,
		DetectTPSL: r.opts.DetectTPSL,
		History:    r.History(instr),
		Meta:       market.LookupInstrument(instr, r.opts.Overrides),
		Sink:       r.opts.Sink,
		Metrics:    r.opts.Metrics,
		Log:        r.log,
	})
	r.engines[k] = e
	r.log.WithField("key", k).Info("tracking pair")
	return e
}

// Handle routes a single event.
func (r *Router) Handle(ev feed.Event) {
	switch ev.Kind {
	case feed.KindBar:
		c, err := ev.Candle()
		if err != nil {
			r.log.WithError(err).Warn("bad bar event")
			return
		}
		if !r.History(ev.Instrument).Append(c) {
			r.log.WithField("instrument", ev.Instrument).Debug("out-of-order bar ignored")
		}

	case feed.KindOrder:
		if !r.tracked(ev.Account, ev.Instrument) {
			return
		}
		oe, err := ev.OrderEvent()
		if err != nil {
			r.log.WithError(err).Warn("bad order event")
			return
		}
		r.engine(ev.Account, ev.Instrument).HandleOrder(oe)

	case feed.KindExecution:
		if !r.tracked(ev.Account, ev.Instrument) {
			return
		}
		ex, err := ev.Execution()
		if err != nil {
			r.log.WithError(err).Warn("bad execution event")
			return
		}
		r.engine(ev.Account, ev.Instrument).HandleExecution(ex)

	default:
		r.log.WithField("kind", ev.Kind).Warn("unknown event kind")
	}
}

// Run handles events until in is closed or ctx is done.
func (r *Router) Run(ctx context.Context, in <-chan feed.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			r.Handle(ev)
		}
	}
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
