package market

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadStats reports what the CSV loader skipped.
type LoadStats struct {
	Rows       int
	BadLines   int
	OutOfOrder int
}

// LoadCandlesCSV reads time,open,high,low,close,volume rows (comma or
// semicolon separated, optional header) into a History.
func LoadCandlesCSV(path string) (*History, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, err
	}
	defer f.Close()
	return ReadCandles(f)
}

func ReadCandles(r io.Reader) (*History, LoadStats, error) {
	var st LoadStats
	h := NewHistory()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "time") || strings.HasPrefix(lower, "t,") {
			continue
		}

		c, err := parseCandleLine(line)
		if err != nil {
			st.BadLines++
			continue
		}
		if !h.Append(c) {
			st.OutOfOrder++
			continue
		}
		st.Rows++
	}
	if err := sc.Err(); err != nil {
		return nil, st, err
	}
	return h, st, nil
}

func parseCandleLine(line string) (Candle, error) {
	sep := ","
	if strings.Contains(line, ";") {
		sep = ";"
	}
	parts := strings.Split(line, sep)
	if len(parts) < 5 {
		return Candle{}, fmt.Errorf("expected at least 5 fields, got %d", len(parts))
	}

	t, err := ParseTime(parts[0])
	if err != nil {
		return Candle{}, err
	}

	var vals [5]float64
	for i := 1; i < len(parts) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Candle{}, fmt.Errorf("bad number %q: %w", parts[i], err)
		}
		vals[i-1] = v
	}

	return Candle{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
