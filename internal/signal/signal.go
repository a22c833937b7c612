package signal

import (
	"time"

	"desk-sentinel/internal/series"
)

// Kind identifies a class of derived signal.
type Kind string

const (
	TrendUp       Kind = "trend_up"
	TrendDown     Kind = "trend_down"
	RSIOversold   Kind = "rsi_oversold"
	RSIOverbought Kind = "rsi_overbought"
	BreakoutHigh  Kind = "breakout_high"
	BreakoutLow   Kind = "breakout_low"
)

// Window lengths and RSI bounds used by the evaluator.
const (
	smaShortWindow = 20
	smaLongWindow  = 50
	rsiWindow      = 14
	breakoutWindow = 20

	rsiOversoldMax   = 30
	rsiOverboughtMin = 70
)

// Signal is an ephemeral per-tick observation produced by Evaluate.
type Signal struct {
	Kind       Kind
	Value      float64
	Note       string
	Instrument string
	At         time.Time
}

// Evaluate derives zero or more signals from the current price and its rolling
// history. The rules are independent: one tick may fire several signals. A
// rule whose window is not yet filled contributes nothing.
func Evaluate(instrument string, price float64, r *series.Rolling, at time.Time) []Signal {
	var out []Signal

	emit := func(kind Kind, value float64, note string) {
		out = append(out, Signal{Kind: kind, Value: value, Note: note, Instrument: instrument, At: at})
	}

	smaShort, okShort := r.SMA(smaShortWindow)
	smaLong, okLong := r.SMA(smaLongWindow)
	if okShort && okLong {
		switch {
		case smaShort > smaLong:
			emit(TrendUp, smaShort-smaLong, "SMA20 above SMA50")
		case smaShort < smaLong:
			emit(TrendDown, smaShort-smaLong, "SMA20 below SMA50")
		}
	}

	if rsi, ok := r.RSI(rsiWindow); ok {
		if rsi <= rsiOversoldMax {
			emit(RSIOversold, rsi, "RSI14 <= 30")
		}
		if rsi >= rsiOverboughtMin {
			emit(RSIOverbought, rsi, "RSI14 >= 70")
		}
	}

	if max, ok := r.MaxLast(breakoutWindow); ok && price >= max {
		emit(BreakoutHigh, price, "price at 20-period high")
	}
	if min, ok := r.MinLast(breakoutWindow); ok && price <= min {
		emit(BreakoutLow, price, "price at 20-period low")
	}

	return out
}
