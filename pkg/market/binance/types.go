package market

// Kline is one Binance candlestick. Only the fields the strategy core reads
// are decoded.
type Kline struct {
	Symbol    string
	OpenTime  int64 // ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64 // ms
	Closed    bool  // the bar is final
}

// Ticker holds lightweight price info for streaming.
type Ticker struct {
	Symbol string
	Price  float64
	Time   int64
}
