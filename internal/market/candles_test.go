package market

import "testing"

func TestCandleWindowFreezesOnSecondAdvance(t *testing.T) {
	w := NewCandleWindow()

	if frozen := w.OnTrade(100.0, 1.0, false, 1_000_000); frozen != nil {
		t.Fatalf("first trade must not freeze a candle")
	}
	if frozen := w.OnTrade(101.0, 2.0, true, 1_000_500); frozen != nil {
		t.Fatalf("same-second trade must not freeze a candle")
	}

	frozen := w.OnTrade(99.0, 0.5, false, 1_001_000)
	if frozen == nil {
		t.Fatalf("second advance must freeze the previous candle")
	}
	if frozen.Open != 100.0 || frozen.Close != 101.0 || frozen.High != 101.0 || frozen.Low != 100.0 {
		t.Fatalf("frozen OHLC = %v/%v/%v/%v", frozen.Open, frozen.High, frozen.Low, frozen.Close)
	}
	if frozen.BuyVolume != 1.0 || frozen.SellVolume != 2.0 {
		t.Fatalf("volumes = buy %v / sell %v, want 1 / 2", frozen.BuyVolume, frozen.SellVolume)
	}
	if frozen.BuyCount != 1 || frozen.SellCount != 1 {
		t.Fatalf("counts = buy %d / sell %d, want 1 / 1", frozen.BuyCount, frozen.SellCount)
	}
	if w.Len() != 1 {
		t.Fatalf("window len = %d, want 1", w.Len())
	}
}

func TestCandleWindowSkipsEmptySeconds(t *testing.T) {
	w := NewCandleWindow()
	w.OnTrade(100.0, 1.0, false, 1_000_000)

	// Next trade five seconds later: exactly one candle freezes, no fillers.
	frozen := w.OnTrade(105.0, 1.0, false, 1_005_000)
	if frozen == nil || frozen.BucketSecond != 1000 {
		t.Fatalf("frozen = %+v, want candle for second 1000", frozen)
	}
	if w.Len() != 1 {
		t.Fatalf("window len = %d, want 1 (no synthetic candles)", w.Len())
	}
}

func TestCandleWindowEvictsOldestAtCapacity(t *testing.T) {
	w := NewCandleWindow()
	for i := 0; i <= WindowCapacity+5; i++ {
		w.OnTrade(100.0+float64(i), 1.0, false, int64(i)*1000)
	}

	if !w.Full() {
		t.Fatalf("window should be full")
	}
	snap := w.Snapshot()
	if len(snap) != WindowCapacity {
		t.Fatalf("snapshot len = %d, want %d", len(snap), WindowCapacity)
	}
	if snap[0].BucketSecond != 5 {
		t.Fatalf("oldest bucket = %d, want 5 after eviction", snap[0].BucketSecond)
	}
	if snap[len(snap)-1].BucketSecond != WindowCapacity+4 {
		t.Fatalf("newest bucket = %d, want %d", snap[len(snap)-1].BucketSecond, WindowCapacity+4)
	}
}

func TestCandleWindowFlush(t *testing.T) {
	w := NewCandleWindow()
	if w.Flush() != nil {
		t.Fatalf("flush on empty window must return nil")
	}

	w.OnTrade(100.0, 1.0, false, 1_000_000)
	frozen := w.Flush()
	if frozen == nil || frozen.BucketSecond != 1000 {
		t.Fatalf("flush = %+v, want in-progress candle for second 1000", frozen)
	}
	if w.Len() != 1 {
		t.Fatalf("flushed candle must join the window")
	}
	if w.Flush() != nil {
		t.Fatalf("second flush must return nil")
	}
}

func TestCandleWindowSnapshotIsACopy(t *testing.T) {
	w := NewCandleWindow()
	w.OnTrade(100.0, 1.0, false, 1_000_000)
	w.OnTrade(101.0, 1.0, false, 1_001_000)

	snap := w.Snapshot()
	snap[0].Close = -1

	if w.Snapshot()[0].Close == -1 {
		t.Fatalf("snapshot mutation leaked into the window")
	}
}
