package report

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rustyeddy/tradeposter/id"
	"github.com/rustyeddy/tradeposter/journal"
	"github.com/rustyeddy/tradeposter/market"
	"github.com/rustyeddy/tradeposter/metrics"
)

// Job is one closed trade waiting for delivery. History is read by the
// worker, so it must be safe for concurrent use (market.History is).
type Job struct {
	ID         string
	Trade      journal.TradeRecord
	History    *market.History
	Instrument market.InstrumentMeta
}

// Options wires the delivery stages. Nil stages are skipped.
type Options struct {
	QueueSize int
	Timeout   time.Duration
	Settings  Settings
	Location  *time.Location

	Journal  journal.Journal
	Uploader Uploader
	Notifier Notifier

	Tracer  trace.Tracer
	Metrics *metrics.Metrics
	Log     *logrus.Entry
}

// Dispatcher delivers trades off the event path: Submit enqueues without
// blocking and a single worker journals, uploads and notifies in that order.
// Each stage fails independently; nothing is retried.
type Dispatcher struct {
	opts  Options
	queue chan Job
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("report")
	}
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "report")
	}

	d := &Dispatcher{
		opts:  opts,
		queue: make(chan Job, opts.QueueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit hands a job to the worker. It never blocks; false means the job
// was dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(j Job) bool {
	if j.ID == "" {
		j.ID = id.New()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(j, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- j:
		d.opts.Metrics.Queue(len(d.queue))
		return true
	default:
		d.drop(j, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(j Job, reason string) {
	d.opts.Metrics.Dropped()
	d.opts.Log.WithFields(logrus.Fields{
		"job":      j.ID,
		"trade_id": j.Trade.TradeID,
	}).Warn("report dropped: " + reason)
}

// Close stops intake and waits for queued jobs until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		d.opts.Metrics.Queue(len(d.queue))
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j Job) {
	defer func() {
		if r := recover(); r != nil {
			d.opts.Metrics.Panic()
			d.opts.Log.WithField("job", j.ID).Errorf("report worker panic: %v", r)
		}
	}()

	rec := j.Trade
	ctx, span := d.opts.Tracer.Start(context.Background(), "report.deliver",
		trace.WithAttributes(
			attribute.String("job.id", j.ID),
			attribute.String("trade.id", rec.TradeID),
			attribute.String("trade.symbol", rec.Symbol),
			attribute.String("trade.account", rec.Account),
			attribute.String("trade.direction", rec.Direction.String()),
			attribute.Int("trade.qty", rec.Qty),
		))
	defer span.End()

	log := d.opts.Log.WithFields(logrus.Fields{
		"job":        j.ID,
		"trade_id":   rec.TradeID,
		"instrument": rec.Symbol,
		"account":    rec.Account,
	})

	if d.opts.Journal != nil {
		if err := d.opts.Journal.RecordTrade(rec); err != nil {
			d.fail(span, log, "journal", err)
		} else {
			d.opts.Metrics.Dispatch("journal", "ok")
		}
	}

	if d.opts.Uploader != nil {
		env := BuildEnvelope(rec, j.History, j.Instrument, d.opts.Settings)
		uctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		err := d.opts.Uploader.Upload(uctx, env)
		cancel()
		if err != nil {
			d.fail(span, log, "upload", err)
		} else {
			d.opts.Metrics.Dispatch("upload", "ok")
			log.Info("trade uploaded")
		}
	} else {
		d.opts.Metrics.Dispatch("upload", "skipped")
	}

	if d.opts.Notifier != nil {
		text := Caption(d.opts.Settings.Environment, rec, j.Instrument.PointValue, d.opts.Settings.Commission, d.opts.Location)
		nctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		err := d.opts.Notifier.Notify(nctx, text)
		cancel()
		if err != nil {
			d.fail(span, log, "telegram", err)
		} else {
			d.opts.Metrics.Dispatch("telegram", "ok")
		}
	}
}

func (d *Dispatcher) fail(span trace.Span, log *logrus.Entry, stage string, err error) {
	d.opts.Metrics.Dispatch(stage, "error")
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	log.WithField("stage", stage).WithError(err).Error("report delivery failed")
}
