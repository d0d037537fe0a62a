package yahoo

// chartResponse mirrors the v8 finance chart API envelope. Only the
// fields we consume are declared.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string `json:"symbol"`
		Currency           string `json:"currency"`
		ExchangeName       string `json:"exchangeName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Bar is a single daily OHLCV observation for a symbol.
type Bar struct {
	Date     string  `json:"date"` // YYYY-MM-DD in the exchange timezone
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Volume   int64   `json:"volume"`
}

// History is the daily bar series returned for one symbol.
type History struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Exchange string `json:"exchange"`
	Bars     []Bar  `json:"bars"`
}
