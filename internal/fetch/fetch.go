// Package fetch downloads daily price history from Yahoo Finance and
// stores it in the on-disk format the market analytics tool reads.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/caldway/tradehelm/pkg/logger"
)

const defaultLookbackDays = 120

// Bar is one daily observation as fetched. Prices stay exact decimals
// until they are written out.
type Bar struct {
	Date   string
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int
}

// Client fetches bar history and quotes for symbols. One client is
// safe for concurrent use.
type Client struct {
	dataDir string
	log     *logger.Logger
	retry   retryPolicy

	// history is swappable so tests run without the network.
	history func(symbol string, start, end time.Time) ([]Bar, error)
}

func New(dataDir string, log *logger.Logger) *Client {
	return &Client{
		dataDir: dataDir,
		log:     log,
		retry:   defaultRetryPolicy(),
		history: yahooDailyHistory,
	}
}

// FetchDaily pulls the trailing days of daily bars for a symbol and
// writes them as a dated price file. It returns the file path and the
// number of bars written.
func (c *Client) FetchDaily(ctx context.Context, symbol string, days int) (string, int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", 0, fmt.Errorf("symbol is required")
	}
	if days <= 0 {
		days = defaultLookbackDays
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	var bars []Bar
	err := c.retry.do(ctx, func() error {
		fetched, ferr := c.history(symbol, start, end)
		if ferr != nil {
			return ferr
		}
		bars = fetched
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return "", 0, fmt.Errorf("no bars returned for %s between %s and %s",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	path, err := c.writeSeries(symbol, bars)
	if err != nil {
		return "", 0, fmt.Errorf("store %s series: %w", symbol, err)
	}

	c.log.Info("price history stored",
		logger.String("symbol", symbol),
		logger.Int("bars", len(bars)),
		logger.String("path", path))
	return path, len(bars), nil
}

// Quote is the current regular-session picture for one symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Exchange  string  `json:"exchange"`
	State     string  `json:"state"`
}

// LatestQuote fetches the current market quote for a symbol.
func (c *Client) LatestQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	var result *Quote
	err := c.retry.do(ctx, func() error {
		q, qerr := quote.Get(symbol)
		if qerr != nil {
			return qerr
		}
		if q == nil {
			return fmt.Errorf("no quote for %s", symbol)
		}
		result = &Quote{
			Symbol:    symbol,
			Price:     q.RegularMarketPrice,
			Change:    q.RegularMarketChange,
			ChangePct: q.RegularMarketChangePercent,
			Exchange:  q.FullExchangeName,
			State:     string(q.MarketState),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	return result, nil
}

func yahooDailyHistory(symbol string, start, end time.Time) ([]Bar, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, Bar{
			Date:   time.Unix(int64(b.Timestamp), 0).UTC().Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}
