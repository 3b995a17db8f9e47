package market

import (
	"sort"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// BookState is the book view lifecycle: Uninitialized until the first
// snapshot, Ready while deltas apply cleanly, Stale after a sequence gap
// until the next snapshot.
type BookState int

const (
	BookUninitialized BookState = iota
	BookReady
	BookStale
)

// String returns the state name for logging.
func (s BookState) String() string {
	switch s {
	case BookReady:
		return "ready"
	case BookStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// BookView is a local top-of-book replica built from a one-time snapshot plus
// an ordered stream of incremental deltas. Levels are keyed by fixed-point
// price ticks so float equality never decides whether a level exists.
//
// BookView is not safe for concurrent use; the supervisor owns it and feeds
// it from a single goroutine.
type BookView struct {
	bids map[int64]float64 // price ticks -> quantity
	asks map[int64]float64

	state        BookState
	lastUpdateID int64

	rejected int64 // deltas dropped for predating the snapshot
	gaps     int64 // sequence gaps detected
}

// NewBookView creates an empty, uninitialized book view.
func NewBookView() *BookView {
	return &BookView{
		bids: make(map[int64]float64),
		asks: make(map[int64]float64),
	}
}

// State returns the current lifecycle state.
func (b *BookView) State() BookState {
	return b.state
}

// Rejected returns the count of deltas dropped as pre-snapshot duplicates.
func (b *BookView) Rejected() int64 {
	return b.rejected
}

// Gaps returns the count of sequence gaps detected.
func (b *BookView) Gaps() int64 {
	return b.gaps
}

// Invalidate forces the view back to Uninitialized. The supervisor calls this
// on every disconnect so a fresh snapshot is required before the next session.
func (b *BookView) Invalidate() {
	b.bids = make(map[int64]float64)
	b.asks = make(map[int64]float64)
	b.state = BookUninitialized
	b.lastUpdateID = 0
}

// Seed replaces both sides wholesale from a snapshot, records its update
// identifier, and transitions to Ready.
func (b *BookView) Seed(snap domain.DepthSnapshot) {
	b.bids = make(map[int64]float64, len(snap.Bids))
	b.asks = make(map[int64]float64, len(snap.Asks))
	for _, lvl := range snap.Bids {
		if lvl.Quantity > 0 {
			b.bids[domain.ToTicks(lvl.Price)] = lvl.Quantity
		}
	}
	for _, lvl := range snap.Asks {
		if lvl.Quantity > 0 {
			b.asks[domain.ToTicks(lvl.Price)] = lvl.Quantity
		}
	}
	b.lastUpdateID = snap.LastUpdateID
	b.state = BookReady
}

// Apply applies one incremental delta. A delta whose final sequence predates
// the current identifier is ignored and counted (duplicate delivery is
// tolerated); a delta that starts beyond the expected next sequence marks the
// view Stale and returns domain.ErrBookStale so the caller can schedule a
// re-snapshot. Deltas are only applied while Ready.
func (b *BookView) Apply(delta *domain.DepthEvent) error {
	switch b.state {
	case BookUninitialized:
		return domain.ErrBookNotReady
	case BookStale:
		return domain.ErrBookStale
	}

	if delta.FinalUpdateID <= b.lastUpdateID {
		b.rejected++
		return nil
	}
	if delta.FirstUpdateID > b.lastUpdateID+1 {
		b.gaps++
		b.state = BookStale
		return domain.ErrBookStale
	}

	applySide(b.bids, delta.Bids)
	applySide(b.asks, delta.Asks)
	b.lastUpdateID = delta.FinalUpdateID
	return nil
}

func applySide(side map[int64]float64, levels []domain.PriceLevel) {
	for _, lvl := range levels {
		ticks := domain.ToTicks(lvl.Price)
		if lvl.Quantity == 0 {
			delete(side, ticks)
		} else {
			side[ticks] = lvl.Quantity
		}
	}
}

// Best returns the best bid and ask with their quantities, scanning the
// extremal keys of each side. Zeros are returned for an empty side.
func (b *BookView) Best() (bestBid, bidQty, bestAsk, askQty float64) {
	var bidTicks, askTicks int64
	for ticks := range b.bids {
		if ticks > bidTicks {
			bidTicks = ticks
		}
	}
	if bidTicks > 0 {
		bestBid = domain.FromTicks(bidTicks)
		bidQty = b.bids[bidTicks]
	}
	for ticks := range b.asks {
		if askTicks == 0 || ticks < askTicks {
			askTicks = ticks
		}
	}
	if askTicks > 0 {
		bestAsk = domain.FromTicks(askTicks)
		askQty = b.asks[askTicks]
	}
	return bestBid, bidQty, bestAsk, askQty
}

// Imbalance returns (bidVol - askVol) / (bidVol + askVol) over the top-N
// levels per side by distance from best: +1 is all bids, -1 all asks, 0 when
// total volume is zero or either side is empty.
func (b *BookView) Imbalance(levels int) float64 {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return 0
	}
	if levels <= 0 {
		levels = 5
	}

	bidTicks := sortedKeys(b.bids, true)
	askTicks := sortedKeys(b.asks, false)
	if len(bidTicks) > levels {
		bidTicks = bidTicks[:levels]
	}
	if len(askTicks) > levels {
		askTicks = askTicks[:levels]
	}

	var bidVol, askVol float64
	for _, t := range bidTicks {
		bidVol += b.bids[t]
	}
	for _, t := range askTicks {
		askVol += b.asks[t]
	}

	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

func sortedKeys(side map[int64]float64, descending bool) []int64 {
	keys := make([]int64, 0, len(side))
	for t := range side {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool {
		if descending {
			return keys[i] > keys[j]
		}
		return keys[i] < keys[j]
	})
	return keys
}
