package historical

import "time"

// DailyPrice is one cached daily observation for a symbol.
type DailyPrice struct {
	Symbol   string  `json:"symbol"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Volume   int64   `json:"volume"`
}

// Coverage describes what the local store holds for a symbol.
type Coverage struct {
	Symbol    string `json:"symbol"`
	Rows      int    `json:"rows"`
	FirstDate string `json:"first_date,omitempty"`
	LastDate  string `json:"last_date,omitempty"`
}

// SyncResult summarizes one price sync pass.
type SyncResult struct {
	Symbols  []string      `json:"symbols"`
	Inserted int           `json:"inserted"`
	Failed   []string      `json:"failed,omitempty"`
	Elapsed  time.Duration `json:"-"`
	Duration string        `json:"duration"`
}
