package market

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

func seededBook() *BookView {
	b := NewBookView()
	b.Seed(domain.DepthSnapshot{
		LastUpdateID: 100,
		Bids: []domain.PriceLevel{
			{Price: 50000.0, Quantity: 1.5},
			{Price: 49999.5, Quantity: 2.0},
		},
		Asks: []domain.PriceLevel{
			{Price: 50000.5, Quantity: 1.0},
			{Price: 50001.0, Quantity: 3.0},
		},
	})
	return b
}

func TestBookApplyBeforeSeedIsNotReady(t *testing.T) {
	b := NewBookView()
	err := b.Apply(&domain.DepthEvent{FirstUpdateID: 1, FinalUpdateID: 2})
	if !errors.Is(err, domain.ErrBookNotReady) {
		t.Fatalf("err = %v, want ErrBookNotReady", err)
	}
}

func TestBookRejectsPreSnapshotDelta(t *testing.T) {
	b := seededBook()

	err := b.Apply(&domain.DepthEvent{
		FirstUpdateID: 90,
		FinalUpdateID: 100,
		Bids:          []domain.PriceLevel{{Price: 49000.0, Quantity: 9}},
	})
	if err != nil {
		t.Fatalf("pre-snapshot delta must be silently dropped, got %v", err)
	}
	if b.Rejected() != 1 {
		t.Fatalf("rejected = %d, want 1", b.Rejected())
	}
	if bid, _, _, _ := b.Best(); bid != 50000.0 {
		t.Fatalf("best bid = %v, dropped delta must not mutate the book", bid)
	}
}

func TestBookAppliesContiguousDelta(t *testing.T) {
	b := seededBook()

	err := b.Apply(&domain.DepthEvent{
		FirstUpdateID: 101,
		FinalUpdateID: 105,
		Bids:          []domain.PriceLevel{{Price: 50000.2, Quantity: 0.7}},
		Asks:          []domain.PriceLevel{{Price: 50000.5, Quantity: 0}}, // remove
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	bid, bidQty, ask, _ := b.Best()
	if bid != 50000.2 || bidQty != 0.7 {
		t.Fatalf("best bid = %v/%v, want 50000.2/0.7", bid, bidQty)
	}
	if ask != 50001.0 {
		t.Fatalf("best ask = %v, removed level should expose next level 50001.0", ask)
	}
}

func TestBookSequenceGapMarksStale(t *testing.T) {
	b := seededBook()

	err := b.Apply(&domain.DepthEvent{FirstUpdateID: 150, FinalUpdateID: 160})
	if !errors.Is(err, domain.ErrBookStale) {
		t.Fatalf("err = %v, want ErrBookStale", err)
	}
	if b.State() != BookStale {
		t.Fatalf("state = %v, want stale", b.State())
	}
	if b.Gaps() != 1 {
		t.Fatalf("gaps = %d, want 1", b.Gaps())
	}

	// Every delta after the gap is refused until a fresh snapshot.
	err = b.Apply(&domain.DepthEvent{FirstUpdateID: 101, FinalUpdateID: 102})
	if !errors.Is(err, domain.ErrBookStale) {
		t.Fatalf("stale book accepted a delta: %v", err)
	}

	// A new snapshot recovers the view.
	b.Seed(domain.DepthSnapshot{
		LastUpdateID: 200,
		Bids:         []domain.PriceLevel{{Price: 50010.0, Quantity: 1}},
		Asks:         []domain.PriceLevel{{Price: 50010.5, Quantity: 1}},
	})
	if b.State() != BookReady {
		t.Fatalf("state after reseed = %v, want ready", b.State())
	}
	if err := b.Apply(&domain.DepthEvent{FirstUpdateID: 201, FinalUpdateID: 202}); err != nil {
		t.Fatalf("Apply after reseed: %v", err)
	}
}

func TestBookInvalidateRequiresNewSnapshot(t *testing.T) {
	b := seededBook()
	b.Invalidate()

	if b.State() != BookUninitialized {
		t.Fatalf("state = %v, want uninitialized", b.State())
	}
	if bid, _, ask, _ := b.Best(); bid != 0 || ask != 0 {
		t.Fatalf("invalidated book still reports levels: bid=%v ask=%v", bid, ask)
	}
	err := b.Apply(&domain.DepthEvent{FirstUpdateID: 101, FinalUpdateID: 102})
	if !errors.Is(err, domain.ErrBookNotReady) {
		t.Fatalf("err = %v, want ErrBookNotReady", err)
	}
}

func TestBookImbalance(t *testing.T) {
	b := seededBook()

	// bids: 1.5 + 2.0 = 3.5, asks: 1.0 + 3.0 = 4.0
	got := b.Imbalance(5)
	want := (3.5 - 4.0) / 7.5
	if diff := got - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("imbalance = %v, want %v", got, want)
	}

	empty := NewBookView()
	if empty.Imbalance(5) != 0 {
		t.Fatalf("empty book imbalance must be 0")
	}
}
