package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one persisted price observation.
type PriceTick struct {
	At         time.Time
	Instrument string
	Price      float64
	Source     string
}

// SignalRecord is a persisted rule trigger. Signals are log entries, not
// state: nothing reads them back on the hot path.
type SignalRecord struct {
	ID         int64
	At         time.Time
	Instrument string
	Kind       string
	Value      float64
	Note       string
}

// AlertRecord captures a dispatched notification for auditing and briefs.
type AlertRecord struct {
	ID        int64
	At        time.Time
	Domain    string
	Subject   string
	Message   string
	DedupeKey string
	CreatedAt time.Time
}

// GamePriceRecord is one storefront price observation.
type GamePriceRecord struct {
	ID          int64
	At          time.Time
	Slug        string
	Store       string
	Price       decimal.Decimal
	NormalPrice *decimal.Decimal
	IsLowest    bool
}

// TradeRecord is one simulated fill in the paper-trading ledger.
type TradeRecord struct {
	ID         int64
	At         time.Time
	Instrument string
	Market     string // "stock" or "option"
	Side       string // "BUY" or "SELL"
	Qty        decimal.Decimal
	Price      decimal.Decimal
}

// ExtremaRecord mirrors the in-memory all-time high/low across restarts.
type ExtremaRecord struct {
	Instrument string
	High       float64
	HighAt     time.Time
	Low        float64
	LowAt      time.Time
}

// ScheduleRecord is one daily ping/brief definition. Rows are written whole,
// so a reader never observes a half-updated item.
type ScheduleRecord struct {
	ID        string
	TimeOfDay string // "HH:MM" local
	DayRule   string // daily|weekdays|weekends|mon..sun
	Target    string // opaque channel reference
	Message   string // empty means "compose a brief"
	Enabled   bool
	LastFired *time.Time // date of last fire, nil if never
}
