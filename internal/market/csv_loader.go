package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoadCSVDir loads every *.csv file in dir into the feed. The file name
// (without extension, upper-cased) becomes the symbol. Bars are enriched
// with indicators and the last close doubles as the current quote, so a
// loaded feed can back both backtests and paper trading offline.
// Returns the number of symbols loaded.
func LoadCSVDir(feed *SliceFeed, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading data directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), ".csv"))
		bars, err := loadCSVFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
		if len(bars) == 0 {
			continue
		}

		bars = AddIndicators(bars)
		feed.SetHistory(symbol, bars)

		last := bars[len(bars)-1]
		feed.SetQuote(symbol, Quote{
			Symbol:    symbol,
			Price:     last.Close,
			Timestamp: last.Date,
		})
		loaded++
	}
	return loaded, nil
}

// loadCSVFile parses one OHLCV file with a date,open,high,low,close,volume
// header. Rows must be in ascending date order.
func loadCSVFile(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var bars []Bar
	var prev time.Time
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse("2006-01-02", record[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date: %w", line, err)
		}
		if !prev.IsZero() && !date.After(prev) {
			return nil, fmt.Errorf("line %d: dates not ascending", line)
		}
		prev = date

		bar := Bar{Date: date}
		for _, field := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"volume", &bar.Volume},
		} {
			v, err := strconv.ParseFloat(record[col[field.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad %s: %w", line, field.name, err)
			}
			*field.dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
