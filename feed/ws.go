package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSFeed reads JSON events from a websocket. Each text message is one
// Event or an array of them.
type WSFeed struct {
	URL    string
	Header http.Header

	// Reconnect is the pause before redialling after the connection drops.
	// Zero returns after the first connection ends.
	Reconnect time.Duration

	// ReadTimeout bounds the silence between messages; zero disables it.
	ReadTimeout time.Duration

	Dialer *websocket.Dialer
	Log    *logrus.Entry
}

func NewWSFeed(url string) *WSFeed {
	return &WSFeed{
		URL:       url,
		Reconnect: 2 * time.Second,
		Dialer:    websocket.DefaultDialer,
		Log:       logrus.WithField("component", "feed.ws"),
	}
}

// Run streams events to out until ctx is done or the server closes the
// connection normally, then closes out. With Reconnect set, dial failures
// and dropped connections are retried.
func (f *WSFeed) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	if f.Dialer == nil {
		f.Dialer = websocket.DefaultDialer
	}
	if f.Log == nil {
		f.Log = logrus.WithField("component", "feed.ws")
	}

	for {
		err := f.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		// a normal close from the server ends the feed
		if err == nil || f.Reconnect <= 0 {
			return err
		}
		f.Log.WithError(err).Warnf("websocket disconnected, retrying in %s", f.Reconnect)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.Reconnect):
		}
	}
}

func (f *WSFeed) session(ctx context.Context, out chan<- Event) error {
	conn, _, err := f.Dialer.DialContext(ctx, f.URL, f.Header)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.Log.WithField("url", f.URL).Info("websocket connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		if f.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		events, err := decode(msg)
		if err != nil {
			f.Log.WithError(err).Warn("skipping malformed message")
			continue
		}
		for _, ev := range events {
			if err := ev.Valid(); err != nil {
				f.Log.WithError(err).Warn("skipping invalid event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func decode(msg []byte) ([]Event, error) {
	if t := bytes.TrimSpace(msg); len(t) > 0 && t[0] == '[' {
		var evs []Event
		err := json.Unmarshal(t, &evs)
		return evs, err
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		return nil, err
	}
	return []Event{ev}, nil
}

var errNoSource = errors.New("no event source configured")

// Source produces events until exhausted or cancelled, closing out.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

// Open returns the live source for url, or an error when url is empty.
func Open(url string) (Source, error) {
	if url == "" {
		return nil, errNoSource
	}
	return NewWSFeed(url), nil
}
