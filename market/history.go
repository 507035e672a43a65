package market

import (
	"sort"
	"sync"
	"time"
)

// History is the bar series of one instrument. Bars are appended by the
// ingestion path and read by reporting workers, so access is guarded.
type History struct {
	mu   sync.RWMutex
	bars []Candle
}

func NewHistory(bars ...Candle) *History {
	h := &History{}
	for _, b := range bars {
		h.Append(b)
	}
	return h
}

// Append adds a bar. Bars older than the last one are ignored; a bar with
// the same time replaces the last one (an updating bar).
func (h *History) Append(c Candle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.bars)
	if n > 0 {
		last := h.bars[n-1].Time
		if c.Time.Before(last) {
			return false
		}
		if c.Time.Equal(last) {
			h.bars[n-1] = c
			return true
		}
	}
	h.bars = append(h.bars, c)
	return true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bars)
}

// Current returns the index of the most recent bar, or -1 when empty.
func (h *History) Current() int {
	return h.Len() - 1
}

// GetBar returns the index of the first bar closing at or after t. When t is
// later than every bar the current bar is returned. -1 means no history.
func (h *History) GetBar(t time.Time) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.bars)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool {
		return !h.bars[i].Time.Before(t)
	})
	if i == n {
		return n - 1
	}
	return i
}

// Bar returns the bar at idx.
func (h *History) Bar(idx int) (Candle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if idx < 0 || idx >= len(h.bars) {
		return Candle{}, false
	}
	return h.bars[idx], true
}

// Window returns a copy of bars [from, to] clipped to the available range.
func (h *History) Window(from, to int) []Candle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.bars) == 0 {
		return nil
	}
	if from < 0 {
		from = 0
	}
	if last := len(h.bars) - 1; to > last {
		to = last
	}
	if to < from {
		return nil
	}

	out := make([]Candle, to-from+1)
	copy(out, h.bars[from:to+1])
	return out
}

// Around returns the window of radius bars centred on idx. A negative idx
// (unresolved bar) yields no candles.
func (h *History) Around(idx, radius int) []Candle {
	if idx < 0 {
		return nil
	}
	if radius < 0 {
		radius = 0
	}
	return h.Window(idx-radius, idx+radius)
}
