package binance

// depthResponse is the REST depth snapshot payload. Levels arrive as
// [price, qty] string pairs.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	EventTimeMs  int64      `json:"E"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// tickerPriceResponse is the /ticker/price payload.
type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// orderResponse is the subset of the order endpoint payload we consume.
type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
}

// apiError is the error payload returned on non-2xx responses.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}
