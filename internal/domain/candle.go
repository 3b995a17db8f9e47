package domain

// Candle is a one-second OHLC + volume/count summary. A candle is mutable
// while its second is in progress and frozen as soon as the next second
// starts; consumers only ever see frozen copies.
type Candle struct {
	BucketSecond int64 // Unix second this candle covers
	Open         float64
	High         float64
	Low          float64
	Close        float64
	BuyVolume    float64
	SellVolume   float64
	BuyCount     int
	SellCount    int
}

// TotalVolume returns buy + sell volume.
func (c Candle) TotalVolume() float64 {
	return c.BuyVolume + c.SellVolume
}

// NetFlow returns buy volume minus sell volume, the signed order flow for the
// second. Positive means net buy pressure.
func (c Candle) NetFlow() float64 {
	return c.BuyVolume - c.SellVolume
}

// TradeCount returns the total number of trades in the second.
func (c Candle) TradeCount() int {
	return c.BuyCount + c.SellCount
}
