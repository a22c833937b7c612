package series

import (
	"math"
	"testing"
)

func TestRollingEvictsOldestFirst(t *testing.T) {
	r := NewRolling(3)
	for _, p := range []float64{1, 2, 3, 4, 5} {
		r.Add(p)
		if r.Len() > 3 {
			t.Fatalf("len %d exceeded capacity", r.Len())
		}
	}
	got := r.Values()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window = %v, want %v", got, want)
		}
	}
}

func TestRollingDefaultCapacity(t *testing.T) {
	if NewRolling(0).Cap() != DefaultCapacity {
		t.Fatal("zero capacity should fall back to default")
	}
}

func TestSMA(t *testing.T) {
	r := NewRolling(10)
	for _, p := range []float64{10, 20, 30} {
		r.Add(p)
	}

	v, ok := r.SMA(3)
	if !ok {
		t.Fatal("SMA(3) should be available with 3 points")
	}
	if v != 20.0 {
		t.Fatalf("SMA(3) = %v, want 20.0", v)
	}

	if _, ok := r.SMA(4); ok {
		t.Fatal("SMA(4) should be unavailable with 3 points")
	}
}

func TestRSIStrictlyIncreasing(t *testing.T) {
	r := NewRolling(50)
	for i := 0; i < 15; i++ {
		r.Add(100 + float64(i))
	}
	v, ok := r.RSI(14)
	if !ok {
		t.Fatal("RSI(14) should be available with 15 points")
	}
	if v != 100 {
		t.Fatalf("RSI on zero-loss window = %v, want 100", v)
	}
}

func TestRSIUnavailableWithShortWindow(t *testing.T) {
	r := NewRolling(50)
	for i := 0; i < 14; i++ {
		r.Add(float64(i))
	}
	if _, ok := r.RSI(14); ok {
		t.Fatal("RSI(14) needs 15 points")
	}
}

func TestRSIMixedMoves(t *testing.T) {
	r := NewRolling(50)
	prices := []float64{44, 44.5, 44.1, 44.6, 45.0, 44.8, 45.2, 45.6, 45.4, 45.9, 46.1, 45.8, 46.3, 46.0, 46.4}
	for _, p := range prices {
		r.Add(p)
	}
	v, ok := r.RSI(14)
	if !ok {
		t.Fatal("RSI should be available")
	}
	if v <= 0 || v >= 100 {
		t.Fatalf("RSI = %v, want value strictly inside (0, 100)", v)
	}
	if math.IsNaN(v) {
		t.Fatal("RSI should not be NaN")
	}
}

func TestWindowExtrema(t *testing.T) {
	r := NewRolling(5)
	for _, p := range []float64{9, 1, 7, 3, 5} {
		r.Add(p)
	}
	if max, _ := r.MaxLast(3); max != 7 {
		t.Fatalf("MaxLast(3) = %v, want 7", max)
	}
	if min, _ := r.MinLast(3); min != 3 {
		t.Fatalf("MinLast(3) = %v, want 3", min)
	}
	if _, ok := r.MaxLast(6); ok {
		t.Fatal("MaxLast beyond window should be unavailable")
	}
}

func TestLast(t *testing.T) {
	r := NewRolling(2)
	if _, ok := r.Last(); ok {
		t.Fatal("empty series has no last value")
	}
	r.Add(1)
	r.Add(2)
	r.Add(3)
	if v, _ := r.Last(); v != 3 {
		t.Fatalf("Last = %v, want 3", v)
	}
}
