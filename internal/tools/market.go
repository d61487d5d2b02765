package tools

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/pkg/logger"
)

const (
	defaultWindow   = 60
	headerLines     = 3
	tradingDays     = 252
	volumeRatioSpan = 20
)

// MarketInput is the wire shape of a market snapshot request.
type MarketInput struct {
	Symbol string `json:"symbol"`
	Window int    `json:"window"`
}

// MarketTool derives point-in-time analytics from on-disk historical
// price files. It holds no mutable state beyond its call counter.
type MarketTool struct {
	dataDir string
	window  int
	log     *logger.Logger
	calls   atomic.Int64
}

func NewMarketTool(dataDir string, window int, log *logger.Logger) *MarketTool {
	if window <= 0 {
		window = defaultWindow
	}
	return &MarketTool{dataDir: dataDir, window: window, log: log}
}

// Calls reports how many snapshot requests this tool has served.
func (t *MarketTool) Calls() int64 { return t.calls.Load() }

// Analyze loads the newest price series for the symbol and computes
// the snapshot. A symbol with no usable data yields a zero-valued
// snapshot rather than an error, so callers can branch on "no data"
// without aborting a run.
func (t *MarketTool) Analyze(ctx context.Context, input *MarketInput) (*models.MarketSnapshot, error) {
	t.calls.Add(1)

	if strings.TrimSpace(input.Symbol) == "" {
		return nil, fmt.Errorf("symbol parameter is required")
	}
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))

	window := input.Window
	if window <= 0 {
		window = t.window
	}

	// A symbol without data keeps every numeric field zero-valued.
	snapshot := &models.MarketSnapshot{Symbol: symbol}

	path, ok := t.latestFile(symbol)
	if !ok {
		t.log.Warn("no price file for symbol", logger.String("symbol", symbol))
		return snapshot, nil
	}

	bars, err := loadPriceBars(path)
	if err != nil {
		t.log.Warn("price file unreadable", logger.String("path", path), logger.Err(err))
		return snapshot, nil
	}
	if len(bars) == 0 {
		return snapshot, nil
	}

	if len(bars) > window {
		bars = bars[len(bars)-window:]
	}

	last := bars[len(bars)-1]
	returns := simpleReturns(bars)

	snapshot.AsOf = last.Date
	snapshot.Open = last.Open
	snapshot.High = last.High
	snapshot.Low = last.Low
	snapshot.Close = last.Close
	snapshot.Volume = last.Volume
	snapshot.Returns = returns
	snapshot.Volatility = annualizedVolatility(returns)
	snapshot.ATR = averageTrueRange(bars)
	snapshot.MA20 = movingAverage(bars, 20)
	snapshot.MA50 = movingAverage(bars, 50)
	snapshot.MA100 = movingAverage(bars, 100)
	snapshot.VolumeRatio = volumeRatio(bars)
	snapshot.TrendStrength = trendStrength(snapshot.MA20, snapshot.MA100)
	snapshot.Bars = len(bars)

	return snapshot, nil
}

// Tool exposes Analyze as a callable agent tool.
func (t *MarketTool) Tool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_market_snapshot",
			Desc: "Compute volatility, trend, and liquidity analytics for a symbol from its historical daily bars",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "Ticker symbol to analyze",
					Required: true,
				},
				"window": {
					Type:     "integer",
					Desc:     "Trailing number of bars to analyze (default 60)",
					Required: false,
				},
			}),
		},
		t.Analyze,
	)
}

// latestFile resolves the active series for a symbol: the
// lexicographically greatest file named SYMBOL_*. With date-stamped
// names that is the most recent one.
func (t *MarketTool) latestFile(symbol string) (string, bool) {
	entries, err := os.ReadDir(t.dataDir)
	if err != nil {
		return "", false
	}

	prefix := symbol + "_"
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return filepath.Join(t.dataDir, names[len(names)-1]), true
}

// loadPriceBars parses a price file: three metadata lines, then rows
// of date,close,high,low,open,volume. Malformed rows are skipped.
func loadPriceBars(path string) ([]models.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= headerLines {
		return nil, nil
	}

	bars := make([]models.PriceBar, 0, len(records)-headerLines)
	for _, rec := range records[headerLines:] {
		if len(rec) < 6 {
			continue
		}
		closePx, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		low, err3 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		open, err4 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		volume, err5 := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		bars = append(bars, models.PriceBar{
			Date:   strings.TrimSpace(rec[0]),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
	}
	return bars, nil
}

// simpleReturns is close[i]/close[i-1] - 1 over consecutive bars.
func simpleReturns(bars []models.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, bars[i].Close/prev-1)
	}
	return returns
}

// annualizedVolatility is the sample standard deviation of the daily
// returns scaled by sqrt(252). Fewer than two returns gives 0.
func annualizedVolatility(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(n-1)) * math.Sqrt(tradingDays)
}

// movingAverage is the arithmetic mean of the trailing
// min(period, available) closes; 0 when no bars exist.
func movingAverage(bars []models.PriceBar, period int) float64 {
	if len(bars) == 0 || period <= 0 {
		return 0
	}
	if period > len(bars) {
		period = len(bars)
	}
	var sum float64
	for _, bar := range bars[len(bars)-period:] {
		sum += bar.Close
	}
	return sum / float64(period)
}

// averageTrueRange is the mean true range over consecutive bar pairs,
// where TR = max(high-low, |high-prevClose|, |low-prevClose|).
func averageTrueRange(bars []models.PriceBar) float64 {
	if len(bars) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		tr := bars[i].High - bars[i].Low
		if hc := math.Abs(bars[i].High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(bars[i].Low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(len(bars)-1)
}

// volumeRatio compares the latest volume against the trailing
// 20-period average; 1.0 when history is too short or volume is flat
// at zero.
func volumeRatio(bars []models.PriceBar) float64 {
	if len(bars) < volumeRatioSpan {
		return 1.0
	}
	var sum float64
	for _, bar := range bars[len(bars)-volumeRatioSpan:] {
		sum += bar.Volume
	}
	avg := sum / float64(volumeRatioSpan)
	if avg == 0 {
		return 1.0
	}
	return bars[len(bars)-1].Volume / avg
}

// trendStrength is (shortMA - longMA) / longMA, guarded against a
// zero long average.
func trendStrength(shortMA, longMA float64) float64 {
	if longMA == 0 {
		return 0
	}
	return (shortMA - longMA) / longMA
}
