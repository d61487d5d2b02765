package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// writeSeries stores bars as a dated price file: two metadata lines, a
// column header, then one row per bar in date order. Duplicate dates
// keep the later bar, so a refetch replaces a partial session.
func (c *Client) writeSeries(symbol string, bars []Bar) (string, error) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })

	deduped := bars[:0]
	for i, b := range bars {
		if i+1 < len(bars) && bars[i+1].Date == b.Date {
			continue
		}
		deduped = append(deduped, b)
	}
	bars = deduped

	var sb strings.Builder
	fmt.Fprintf(&sb, "symbol,%s\n", symbol)
	sb.WriteString("interval,1d\n")
	sb.WriteString("date,close,high,low,open,volume\n")
	for _, b := range bars {
		fmt.Fprintf(&sb, "%s,%s,%s,%s,%s,%d\n",
			b.Date, b.Close.String(), b.High.String(), b.Low.String(), b.Open.String(), b.Volume)
	}

	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.csv", symbol, bars[len(bars)-1].Date)
	path := filepath.Join(c.dataDir, name)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
