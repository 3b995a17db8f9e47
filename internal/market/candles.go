package market

import "github.com/alanyoungcy/scalpbot/internal/domain"

// WindowCapacity is the number of completed candles the sliding window keeps.
const WindowCapacity = 60

// CandleWindow buckets trade events into one-second candles and keeps a
// bounded sliding window of completed buckets, oldest first. The in-progress
// candle is frozen and appended the moment a trade from a later second
// arrives.
//
// Not safe for concurrent use; owned by the supervisor's event loop.
type CandleWindow struct {
	completed []domain.Candle
	current   domain.Candle
	open      bool
}

// NewCandleWindow creates an empty window.
func NewCandleWindow() *CandleWindow {
	return &CandleWindow{
		completed: make([]domain.Candle, 0, WindowCapacity),
	}
}

// OnTrade folds one trade into the window. When the trade's second advances
// past the in-progress bucket, the finished candle is returned so the caller
// can record it; otherwise the return is nil.
func (w *CandleWindow) OnTrade(price, qty float64, sellerIsMaker bool, epochMs int64) *domain.Candle {
	second := epochMs / 1000

	var frozen *domain.Candle
	if !w.open {
		w.current = newCandle(second, price)
		w.open = true
	} else if second > w.current.BucketSecond {
		done := w.current
		w.append(done)
		frozen = &done
		w.current = newCandle(second, price)
	}

	c := &w.current
	c.Close = price
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	// Seller-is-maker means the taker sold: sell-side volume. The inverse is
	// buy-side. The sign convention must match the exchange's taker/maker
	// semantics or every net-flow feature inverts.
	if sellerIsMaker {
		c.SellVolume += qty
		c.SellCount++
	} else {
		c.BuyVolume += qty
		c.BuyCount++
	}
	return frozen
}

// Flush freezes and returns the in-progress candle without waiting for the
// next second, for use at disconnect/shutdown. Returns nil when no candle is
// open. The window is left without an in-progress candle.
func (w *CandleWindow) Flush() *domain.Candle {
	if !w.open {
		return nil
	}
	done := w.current
	w.append(done)
	w.open = false
	return &done
}

// Len returns the number of completed candles in the window.
func (w *CandleWindow) Len() int {
	return len(w.completed)
}

// Full reports whether the window holds WindowCapacity completed candles.
func (w *CandleWindow) Full() bool {
	return len(w.completed) == WindowCapacity
}

// Snapshot returns an ordered, read-only copy of the completed candles,
// oldest first.
func (w *CandleWindow) Snapshot() []domain.Candle {
	out := make([]domain.Candle, len(w.completed))
	copy(out, w.completed)
	return out
}

// Reset drops all state, completed and in-progress.
func (w *CandleWindow) Reset() {
	w.completed = w.completed[:0]
	w.open = false
}

func (w *CandleWindow) append(c domain.Candle) {
	if len(w.completed) == WindowCapacity {
		copy(w.completed, w.completed[1:])
		w.completed = w.completed[:WindowCapacity-1]
	}
	w.completed = append(w.completed, c)
}

func newCandle(second int64, price float64) domain.Candle {
	return domain.Candle{
		BucketSecond: second,
		Open:         price,
		High:         price,
		Low:          price,
		Close:        price,
	}
}
