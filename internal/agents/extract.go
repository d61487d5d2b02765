package agents

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/caldway/tradehelm/internal/models"
)

// Reasoner replies are expected to end in a fenced JSON block, but a
// model that drifts off-format still has to yield a usable signal, so
// extraction degrades from JSON to keyword scoring.

var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

var (
	buyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(buy|long|bullish|accumulate|upside)\b`),
		regexp.MustCompile(`(?i)\b(undervalued|oversold|breakout)\b`),
	}
	sellPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(sell|short|bearish|downside|exit)\b`),
		regexp.MustCompile(`(?i)\b(overvalued|overbought|breakdown)\b`),
	}
	holdPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(hold|neutral|wait|sideways|range-bound)\b`),
	}
)

// ExtractSignal turns a reasoner reply into a structured signal. It
// never returns nil; text with no readable decision comes back as a
// low-conviction HOLD.
func ExtractSignal(text, symbol string) *models.Signal {
	if m := jsonBlockRe.FindStringSubmatch(text); len(m) > 1 {
		if sig := parseSignalJSON(m[1], symbol); sig != nil {
			return sig
		}
	}
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "{") {
		if sig := parseSignalJSON(trimmed, symbol); sig != nil {
			return sig
		}
	}
	return keywordSignal(text, symbol)
}

func parseSignalJSON(block, symbol string) *models.Signal {
	var raw struct {
		Action     string  `json:"action"`
		Conviction float64 `json:"conviction"`
		Entry      string  `json:"entry"`
		Exit       string  `json:"exit"`
		Rationale  string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil
	}

	action := strings.ToUpper(strings.TrimSpace(raw.Action))
	switch action {
	case models.ActionBuy, models.ActionSell, models.ActionHold:
	default:
		return nil
	}

	conviction := raw.Conviction
	if conviction < 0 {
		conviction = 0
	}
	if conviction > 1 {
		conviction = 1
	}

	return &models.Signal{
		Symbol:     symbol,
		Action:     action,
		Conviction: conviction,
		Entry:      strings.TrimSpace(raw.Entry),
		Exit:       strings.TrimSpace(raw.Exit),
		Rationale:  strings.TrimSpace(raw.Rationale),
	}
}

// keywordSignal scores directional vocabulary when no JSON block is
// readable. Ties fall to HOLD.
func keywordSignal(text, symbol string) *models.Signal {
	lower := strings.ToLower(text)

	buyScore := countMatches(buyPatterns, lower)
	sellScore := countMatches(sellPatterns, lower)
	holdScore := countMatches(holdPatterns, lower)

	action := models.ActionHold
	if buyScore > sellScore && buyScore > holdScore {
		action = models.ActionBuy
	} else if sellScore > buyScore && sellScore > holdScore {
		action = models.ActionSell
	}

	totalWords := len(strings.Fields(lower))
	conviction := 0.3
	if totalWords > 0 {
		matched := buyScore
		switch action {
		case models.ActionSell:
			matched = sellScore
		case models.ActionHold:
			matched = holdScore
		}
		conviction = float64(matched) / float64(totalWords) * 10
		if conviction > 1 {
			conviction = 1
		}
		if conviction < 0.1 {
			conviction = 0.1
		}
	}

	return &models.Signal{
		Symbol:     symbol,
		Action:     action,
		Conviction: conviction,
		Rationale:  firstRelevantSentence(text, action),
	}
}

func countMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, p := range patterns {
		n += len(p.FindAllString(text, -1))
	}
	return n
}

func firstRelevantSentence(text, action string) string {
	var patterns []*regexp.Regexp
	switch action {
	case models.ActionBuy:
		patterns = buyPatterns
	case models.ActionSell:
		patterns = sellPatterns
	default:
		patterns = holdPatterns
	}

	for _, sentence := range strings.Split(text, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 10 {
			continue
		}
		for _, p := range patterns {
			if p.MatchString(strings.ToLower(sentence)) {
				return sentence
			}
		}
	}
	return ""
}
