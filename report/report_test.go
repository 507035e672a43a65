package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeposter/broker"
	"github.com/rustyeddy/tradeposter/journal"
	"github.com/rustyeddy/tradeposter/market"
	"github.com/rustyeddy/tradeposter/metrics"
)

var t0 = time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func minuteHistory(n int) *market.History {
	h := market.NewHistory()
	for i := 0; i < n; i++ {
		p := 100 + float64(i)
		h.Append(market.Candle{Time: t0.Add(time.Duration(i) * time.Minute), Open: p, High: p + 0.5, Low: p - 0.25, Close: p + 0.125, Volume: 10.4})
	}
	return h
}

func sampleTrade() journal.TradeRecord {
	return journal.TradeRecord{
		TradeID:    "0123456789abcdef0123456789abcdef01234567",
		Account:    "Sim101",
		Symbol:     "ES 12-25",
		Direction:  broker.Long,
		Qty:        2,
		EntryPrice: 100,
		ExitPrice:  104.5,
		EntryTime:  t0.Add(5 * time.Minute),
		ExitTime:   t0.Add(12 * time.Minute),
		TakeProfit: ptr(105.0),
	}
}

var es = market.LookupInstrument("ES 12-25", nil)

func TestBuildEnvelope(t *testing.T) {
	t.Parallel()

	rec := sampleTrade()
	rec.EntryPrice = 100.333333333
	rec.ExitBar = ptr(12)

	env := BuildEnvelope(rec, minuteHistory(15), es, Settings{
		Environment:        "sim",
		ContextBars:        3,
		IncludeExitContext: true,
		Commission:         2.5,
	})

	assert.Len(t, env.CandlesEntry, 7) // bars 2..8
	assert.Len(t, env.CandlesExit, 6)  // bars 9..15 clipped to 9..14

	data, err := json.Marshal(env)
	require.NoError(t, err)
	s := string(data)

	assert.Contains(t, s, `"trade_id":"0123456789abcdef0123456789abcdef01234567"`)
	assert.Contains(t, s, `"environment":"sim"`)
	assert.Contains(t, s, `"accountName":"Sim101"`)
	assert.Contains(t, s, `"direction":"long"`)
	assert.Contains(t, s, `"qty":2`)
	assert.Contains(t, s, `"entryPrice":100.3333`)
	assert.Contains(t, s, `"exitPrice":104.5`)
	assert.Contains(t, s, `"takeProfit":105`)
	assert.Contains(t, s, `"stopLoss":null`)
	assert.Contains(t, s, `"tickSize":0.25`)
	assert.Contains(t, s, `"tickValue":12.5`)
	assert.Contains(t, s, `"commission":2.5`)
	assert.Contains(t, s, `"entryTime":"2025-03-04T14:35:00.0000000Z"`)
	assert.Contains(t, s, `{"t":"2025-03-04T14:32:00.0000000Z","o":102,"h":102.5,"l":101.75,"c":102.125,"v":10}`)
}

func TestBuildEnvelopeEmptyWindows(t *testing.T) {
	t.Parallel()

	rec := sampleTrade()

	env := BuildEnvelope(rec, nil, es, Settings{ContextBars: 5, IncludeExitContext: true})
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"candles_entry":[]`)
	assert.Contains(t, string(data), `"candles_exit":[]`)

	env = BuildEnvelope(rec, minuteHistory(20), es, Settings{ContextBars: 2})
	assert.Len(t, env.CandlesEntry, 5)
	assert.Empty(t, env.CandlesExit)
	assert.NotNil(t, env.CandlesExit)

	env = BuildEnvelope(rec, market.NewHistory(), es, Settings{ContextBars: 2, IncludeExitContext: true})
	assert.Empty(t, env.CandlesEntry)
	assert.Empty(t, env.CandlesExit)
}

func TestBuildEnvelopeExitFallsBackToCurrentBar(t *testing.T) {
	t.Parallel()

	env := BuildEnvelope(sampleTrade(), minuteHistory(10), es, Settings{ContextBars: 1, IncludeExitContext: true})
	require.Len(t, env.CandlesExit, 2) // current bar 9, window [8,10] clipped
	assert.Equal(t, Price(109), env.CandlesExit[1].O)
}

func TestCaption(t *testing.T) {
	t.Parallel()

	long := sampleTrade()
	assert.Equal(t,
		"[SIM] 04-Mar-2025 14:42 ES 12-25 Buy @100 TP:105 SL:— Qty:2 WON +9 pts +$445.00",
		Caption("sim", long, 50, 2.5, time.UTC))

	short := sampleTrade()
	short.Direction = broker.Short
	short.Qty = 1
	short.ExitPrice = 101.25
	short.TakeProfit = nil
	short.StopLoss = ptr(101.25)
	assert.Equal(t,
		"[REAL] 04-Mar-2025 14:42 ES 12-25 Sell @100 TP:— SL:101.25 Qty:1 LOSS -1.25 pts -$62.50",
		Caption("real", short, 50, 0, time.UTC))

	flat := sampleTrade()
	flat.ExitPrice = flat.EntryPrice
	assert.Contains(t, Caption("", flat, 50, 0, time.UTC), "[SIM] ")
	assert.Contains(t, Caption("", flat, 50, 0, time.UTC), "FLAT +0 pts +$0.00")
}

func TestHTTPUploader(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	env := BuildEnvelope(sampleTrade(), nil, es, Settings{Environment: "sim"})
	require.NoError(t, NewHTTPUploader(srv.URL, time.Second).Upload(context.Background(), env))

	meta, ok := got["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Sim101", meta["accountName"])
	assert.Nil(t, meta["stopLoss"])
}

func TestHTTPUploaderNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPUploader(srv.URL, time.Second).Upload(context.Background(), Envelope{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
}

func TestHTTPUploaderTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewHTTPUploader(srv.URL, 50*time.Millisecond).Upload(context.Background(), Envelope{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTelegram(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		assert.Equal(t, "hello", r.PostForm.Get("text"))
		assert.Equal(t, "true", r.PostForm.Get("disable_web_page_preview"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewTelegram(srv.URL+"/", "TOKEN", "42", time.Second).Notify(context.Background(), "hello"))
}

func TestTelegramErrorHidesToken(t *testing.T) {
	t.Parallel()

	err := NewTelegram("http://127.0.0.1:1", "SECRET", "42", 200*time.Millisecond).Notify(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	block chan struct{}
	began chan struct{}
}

func newRecorder() *recorder { return &recorder{fail: map[string]bool{}} }

func (r *recorder) note(stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, stage)
	if r.fail[stage] {
		return errors.New(stage + " failed")
	}
	return nil
}

func (r *recorder) RecordTrade(journal.TradeRecord) error { return r.note("journal") }
func (r *recorder) Close() error { return nil }

func (r *recorder) Upload(ctx context.Context, env Envelope) error {
	if r.began != nil {
		r.began <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	return r.note("upload")
}

func (r *recorder) Notify(ctx context.Context, text string) error { return r.note("telegram") }

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestDispatcherStageOrder(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	d := NewDispatcher(Options{Journal: rec, Uploader: rec, Notifier: rec})

	require.True(t, d.Submit(Job{Trade: sampleTrade(), Instrument: es}))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []string{"journal", "upload", "telegram"}, rec.Calls())
}

func TestDispatcherStagesFailIndependently(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rec := newRecorder()
	rec.fail["journal"] = true
	rec.fail["upload"] = true
	d := NewDispatcher(Options{Journal: rec, Uploader: rec, Notifier: rec, Metrics: m})

	d.Submit(Job{Trade: sampleTrade()})
	d.Submit(Job{Trade: sampleTrade()})
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []string{"journal", "upload", "telegram", "journal", "upload", "telegram"}, rec.Calls())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchResults.WithLabelValues("upload", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchResults.WithLabelValues("telegram", "ok")))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rec := newRecorder()
	rec.block = make(chan struct{})
	rec.began = make(chan struct{}, 4)
	d := NewDispatcher(Options{QueueSize: 1, Uploader: rec, Metrics: m})

	require.True(t, d.Submit(Job{Trade: sampleTrade()}))
	<-rec.began // worker is busy with the first job

	assert.True(t, d.Submit(Job{Trade: sampleTrade()}))
	assert.False(t, d.Submit(Job{Trade: sampleTrade()}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsDropped))

	close(rec.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, rec.Calls(), 2)

	assert.False(t, d.Submit(Job{Trade: sampleTrade()}))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsDropped))
}

func TestDispatcherCloseHonoursContext(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	rec.block = make(chan struct{})
	d := NewDispatcher(Options{Uploader: rec})
	d.Submit(Job{Trade: sampleTrade()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	close(rec.block)
}
