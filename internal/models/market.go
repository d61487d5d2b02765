package models

// PriceBar is one OHLCV observation loaded from a historical series.
// Bars are immutable once loaded; corrections arrive as new files.
type PriceBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// MarketSnapshot is the derived feature bundle for a symbol at a point
// in time. It is a pure function of the bar series and is never
// persisted. Bars == 0 marks "no data for this symbol".
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	AsOf          string    `json:"as_of"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	Returns       []float64 `json:"returns,omitempty"`
	Volatility    float64   `json:"volatility"`
	ATR           float64   `json:"atr"`
	MA20          float64   `json:"ma20"`
	MA50          float64   `json:"ma50"`
	MA100         float64   `json:"ma100"`
	VolumeRatio   float64   `json:"volume_ratio"`
	TrendStrength float64   `json:"trend_strength"`
	Bars          int       `json:"bars"`
}

// HasData reports whether any usable bars backed this snapshot.
func (s *MarketSnapshot) HasData() bool {
	return s != nil && s.Bars > 0
}
