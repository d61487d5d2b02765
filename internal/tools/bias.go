package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/pkg/logger"
)

// A snapshot older than this is stale even before its expiry.
const biasMaxAge = 24 * time.Hour

// BiasInput is the wire shape of a bias lookup request.
type BiasInput struct {
	Symbol string `json:"symbol"`
}

// BiasTool reads the shared directional-bias cache. It never writes
// the cache and performs no trading logic; it only reports what the
// slow analyst last published and whether that is still fresh.
type BiasTool struct {
	cachePath string
	log       *logger.Logger
	calls     atomic.Int64
	now       func() time.Time
}

func NewBiasTool(cachePath string, log *logger.Logger) *BiasTool {
	return &BiasTool{cachePath: cachePath, log: log, now: time.Now}
}

// Calls reports how many lookups this tool has served.
func (t *BiasTool) Calls() int64 { return t.calls.Load() }

// biasEntry is the on-disk value shape; timestamps arrive as text in
// one of several encodings and are parsed tolerantly.
type biasEntry struct {
	Score      float64                `json:"score"`
	Direction  string                 `json:"direction"`
	Conviction float64                `json:"conviction"`
	Reason     string                 `json:"reason"`
	Model      string                 `json:"model"`
	Sources    []string               `json:"sources"`
	CreatedAt  string                 `json:"created_at"`
	ExpiresAt  string                 `json:"expires_at"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Lookup returns the cached snapshot for a symbol with its freshness
// verdict. A missing cache file, missing key, or undecodable cache
// all degrade to "not found" without an error.
func (t *BiasTool) Lookup(ctx context.Context, input *BiasInput) (*models.BiasLookup, error) {
	t.calls.Add(1)

	if strings.TrimSpace(input.Symbol) == "" {
		return nil, fmt.Errorf("symbol parameter is required")
	}
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))

	result := &models.BiasLookup{Symbol: symbol}

	data, err := os.ReadFile(t.cachePath)
	if err != nil {
		return result, nil
	}

	cache := make(map[string]biasEntry)
	if err := json.Unmarshal(data, &cache); err != nil {
		t.log.Warn("bias cache unreadable", logger.String("path", t.cachePath), logger.Err(err))
		return result, nil
	}

	entry, ok := cache[symbol]
	if !ok {
		return result, nil
	}

	created := parseTimestamp(entry.CreatedAt)
	expires := parseTimestamp(entry.ExpiresAt)

	now := t.now()
	age := now.Sub(created)

	result.Found = true
	result.Snapshot = models.BiasSnapshot{
		Score:      entry.Score,
		Direction:  entry.Direction,
		Conviction: entry.Conviction,
		Reason:     entry.Reason,
		Model:      entry.Model,
		Sources:    entry.Sources,
		CreatedAt:  created,
		ExpiresAt:  expires,
		Metadata:   entry.Metadata,
	}
	result.AgeMinutes = age.Minutes()
	result.Fresh = now.Before(expires) && age <= biasMaxAge
	if !result.Fresh {
		result.Note = "stale_bias"
	}

	return result, nil
}

// Tool exposes Lookup as a callable agent tool.
func (t *BiasTool) Tool() tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_bias_snapshot",
			Desc: "Look up the cached directional bias for a symbol, annotated with its freshness",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     "string",
					Desc:     "Ticker symbol to look up",
					Required: true,
				},
			}),
		},
		t.Lookup,
	)
}

// timestampFormats is tried in order; the first match wins.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a cache timestamp against the known formats.
// Total failure yields the zero time, which always reads as stale.
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if ts, err := time.Parse(format, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
