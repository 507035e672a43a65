package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeposter/broker"
)

const sample = `time,kind,account,instrument,action,qty,price,limit,stop,label,order_id,state
2025-03-04T14:30:00Z,bar,Sim101,ES 12-25,100,101,99.5,100.25,1200
2025-03-04T14:30:05Z,order,Sim101,ES 12-25,Sell,1,,105,,Target1,o-2,working
2025-03-04T14:30:06Z,execution,Sim101,ES 12-25,Buy,1,100.25,,,Entry,o-1,filled
2025-03-04T14:31:00Z,execution,Sim101,ES 12-25,Sell,1,105,105,,Target1,o-2,filled
`

func collect(t *testing.T, src Source) []Event {
	t.Helper()
	out := make(chan Event, 16)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(context.Background(), out) }()

	var evs []Event
	for ev := range out {
		evs = append(evs, ev)
	}
	require.NoError(t, <-errc)
	return evs
}

func TestCSVFeed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := NewCSVFeed(path, time.Time{}, time.Time{})
	require.NoError(t, err)
	defer f.Close()

	evs := collect(t, f)
	require.Len(t, evs, 4)

	c, err := evs[0].Candle()
	require.NoError(t, err)
	assert.Equal(t, 100.25, c.Close)
	assert.Equal(t, 1200.0, c.Volume)

	oe, err := evs[1].OrderEvent()
	require.NoError(t, err)
	assert.Equal(t, broker.Sell, oe.Order.Action)
	assert.Equal(t, 105.0, oe.Order.LimitPrice)
	assert.Zero(t, oe.Order.StopPrice)
	assert.Equal(t, "Target1", oe.Order.Label)
	assert.Equal(t, broker.OrderWorking, oe.Order.State)

	ex, err := evs[2].Execution()
	require.NoError(t, err)
	assert.Equal(t, broker.Buy, ex.Order.Action)
	assert.Equal(t, 1, ex.Quantity)
	assert.Equal(t, 100.25, ex.Price)
	assert.Equal(t, "o-1", ex.Order.ID)

	_, err = evs[2].OrderEvent()
	assert.Error(t, err)
}

func TestCSVFeedTimeFilter(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 4, 14, 30, 5, 0, time.UTC)
	to := time.Date(2025, 3, 4, 14, 31, 0, 0, time.UTC)
	evs := collect(t, NewCSVReader(strings.NewReader(sample), from, to))

	require.Len(t, evs, 2)
	assert.Equal(t, KindOrder, evs[0].Kind)
	assert.Equal(t, KindExecution, evs[1].Kind)
}

func TestCSVFeedSkipsBadRows(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"not-a-time,execution,Sim101,ES 12-25,Buy,1,100",
		"2025-03-04T14:30:06Z,fill,Sim101,ES 12-25,Buy,1,100",
		"2025-03-04T14:30:06Z,execution,Sim101,ES 12-25,Buy,one,100",
		"2025-03-04T14:30:07Z,execution,Sim101,ES 12-25,Buy,1,100",
	}, "\n")

	f := NewCSVReader(strings.NewReader(in), time.Time{}, time.Time{})
	_, _, err := f.Next()
	var rerr *RowError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Line)

	evs := collect(t, f)
	require.Len(t, evs, 1)
	assert.Equal(t, 1, evs[0].Qty)
}

func TestCSVFeedRejectsNonFiniteNumbers(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"2025-03-04T14:30:05Z,execution,Sim101,ES 12-25,Buy,1,NaN",
		"2025-03-04T14:30:06Z,execution,Sim101,ES 12-25,Buy,1,+Inf",
		"2025-03-04T14:30:07Z,order,Sim101,ES 12-25,Sell,1,,-Inf",
		"2025-03-04T14:30:08Z,execution,Sim101,ES 12-25,Buy,1,100.25",
	}, "\n")

	f := NewCSVReader(strings.NewReader(in), time.Time{}, time.Time{})
	for line := 1; line <= 3; line++ {
		_, _, err := f.Next()
		var rerr *RowError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, line, rerr.Line)
	}

	evs := collect(t, f)
	require.Len(t, evs, 1)
	assert.Equal(t, 100.25, evs[0].Price)
}

func TestExecutionValidation(t *testing.T) {
	t.Parallel()

	ev := Event{Kind: KindExecution, Instrument: "ES 12-25", Action: "Hold", Qty: 1}
	_, err := ev.Execution()
	assert.ErrorIs(t, err, broker.ErrUnknownAction)

	ev.Action = "buy"
	ev.Qty = 0
	_, err = ev.Execution()
	assert.ErrorIs(t, err, broker.ErrInvalidExecution)
}

func wsServer(t *testing.T, msgs ...string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
}

func TestWSFeed(t *testing.T) {
	t.Parallel()

	srv := wsServer(t,
		`{"kind":"execution","time":"2025-03-04T14:30:06Z","account":"Sim101","instrument":"ES 12-25","action":"Buy","qty":1,"price":100.25}`,
		`not json`,
		`{"kind":"mystery","instrument":"ES 12-25"}`,
		`[{"kind":"bar","time":"2025-03-04T14:31:00Z","account":"Sim101","instrument":"ES 12-25","bar":{"open":1,"high":2,"low":0.5,"close":1.5,"volume":3}},
		  {"kind":"order","time":"2025-03-04T14:31:01Z","account":"Sim101","instrument":"ES 12-25","action":"Sell","limit":105}]`,
	)
	defer srv.Close()

	f := NewWSFeed("ws" + strings.TrimPrefix(srv.URL, "http"))
	f.Reconnect = 0

	evs := collect(t, f)
	require.Len(t, evs, 3)
	assert.Equal(t, KindExecution, evs[0].Kind)
	assert.Equal(t, KindBar, evs[1].Kind)
	assert.Equal(t, 105.0, evs[2].Limit)
}

func TestWSFeedStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := NewWSFeed("ws://127.0.0.1:1/events")
	f.Reconnect = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := make(chan Event)
	assert.NoError(t, f.Run(ctx, out))
	_, open := <-out
	assert.False(t, open)
}

func TestWSFeedNormalCloseEndsRun(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	inner := wsServer(t, `{"kind":"execution","time":"2025-03-04T14:30:06Z","account":"Sim101","instrument":"ES 12-25","action":"Buy","qty":1,"price":100.25}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()
	defer inner.Close()

	f := NewWSFeed("ws" + strings.TrimPrefix(srv.URL, "http"))
	f.Reconnect = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan Event, 4)
	require.NoError(t, f.Run(ctx, out))
	assert.NoError(t, ctx.Err())
	assert.Equal(t, int32(1), dials.Load())

	var evs []Event
	for ev := range out {
		evs = append(evs, ev)
	}
	assert.Len(t, evs, 1)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	assert.Error(t, err)

	src, err := Open("ws://localhost/events")
	require.NoError(t, err)
	assert.IsType(t, &WSFeed{}, src)
}
