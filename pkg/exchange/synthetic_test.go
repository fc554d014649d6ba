package exchange

import (
	"testing"
	"time"
)

func TestSyntheticCandles_Deterministic(t *testing.T) {
	a := SyntheticCandles(50, "1h")
	b := SyntheticCandles(50, "1h")

	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("expected 50 candles, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Open != b[i].Open || a[i].Close != b[i].Close || a[i].Volume != b[i].Volume {
			t.Fatalf("expected identical candles at index %d", i)
		}
	}
}

func TestSyntheticCandles_AscendingAndValid(t *testing.T) {
	candles := SyntheticCandles(100, "15m")

	for i, c := range candles {
		if !c.Valid() {
			t.Errorf("candle %d is invalid: %+v", i, c)
		}
		if c.High < c.Low {
			t.Errorf("candle %d has high %f below low %f", i, c.High, c.Low)
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			t.Errorf("timestamps not strictly increasing at index %d", i)
		}
	}

	step := candles[1].Timestamp.Sub(candles[0].Timestamp)
	if step != 15*time.Minute {
		t.Errorf("expected 15m spacing, got %s", step)
	}
}

func TestSyntheticCandles_NonPositiveLimit(t *testing.T) {
	if got := SyntheticCandles(0, "1h"); got != nil {
		t.Errorf("expected nil for limit 0, got %d candles", len(got))
	}
}

func TestCandleValid(t *testing.T) {
	now := time.Now()

	valid := Candle{Timestamp: now, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	if !valid.Valid() {
		t.Error("expected candle to be valid")
	}

	zeroTime := Candle{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	if zeroTime.Valid() {
		t.Error("expected candle with zero timestamp to be invalid")
	}
}

func TestTimeframeDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"5m":  5 * time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"??":  time.Hour,
	}
	for label, want := range cases {
		if got := TimeframeDuration(label); got != want {
			t.Errorf("TimeframeDuration(%q) = %s, want %s", label, got, want)
		}
	}
}
