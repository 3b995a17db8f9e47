// Package gate decides whether a new position should be opened: it checks the
// candle window is fully warmed up, builds the feature vector, and compares
// the predictor's confidence against the configured threshold.
package gate

import "github.com/alanyoungcy/scalpbot/internal/domain"

// FeaturesPerSecond is the number of features extracted from each candle.
const FeaturesPerSecond = 6

// BuildFeatures flattens the candle window into the model input: one row per
// second, oldest first, with close, high, low, total volume, net flow, and
// trade count per row. The window must be full; callers enforce that.
func BuildFeatures(candles []domain.Candle) []float32 {
	features := make([]float32, 0, len(candles)*FeaturesPerSecond)
	for _, c := range candles {
		features = append(features,
			float32(c.Close),
			float32(c.High),
			float32(c.Low),
			float32(c.TotalVolume()),
			float32(c.NetFlow()),
			float32(c.TradeCount()),
		)
	}
	return features
}
