package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertTickSQL = `INSERT INTO price_ticks (ts, instrument, price, source)
    VALUES ($1,$2,$3,$4);`

	listTicksBetweenSQL = `SELECT ts, instrument, price, source
    FROM price_ticks
    WHERE instrument = $1
      AND ts >= $2
      AND ts < $3
    ORDER BY ts;`

	listRecentTicksSQL = `SELECT ts, instrument, price, source
    FROM price_ticks
    ORDER BY ts DESC
    LIMIT $1;`

	insertSignalSQL = `INSERT INTO signals (ts, instrument, kind, value, note)
    VALUES ($1,$2,$3,$4,$5);`

	insertAlertSQL = `INSERT INTO alerts (ts, domain, subject, message, dedupe_key)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id, ts, domain, subject, message, dedupe_key, created_at;`

	listRecentAlertsSQL = `SELECT id, ts, domain, subject, message, dedupe_key, created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	insertGamePriceSQL = `INSERT INTO game_prices (ts, slug, store, price, normal_price, is_lowest)
    VALUES ($1,$2,$3,$4,$5,$6);`

	listRecentGamePricesSQL = `SELECT id, ts, slug, store, price, normal_price, is_lowest
    FROM game_prices
    ORDER BY ts DESC
    LIMIT $1;`

	insertTradeSQL = `INSERT INTO trades (ts, instrument, market, side, qty, price)
    VALUES ($1,$2,$3,$4,$5,$6);`

	upsertExtremaSQL = `INSERT INTO extrema (instrument, high, high_ts, low, low_ts)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (instrument) DO UPDATE
    SET high    = EXCLUDED.high,
        high_ts = EXCLUDED.high_ts,
        low     = EXCLUDED.low,
        low_ts  = EXCLUDED.low_ts;`

	getExtremaSQL = `SELECT instrument, high, high_ts, low, low_ts
    FROM extrema
    WHERE instrument = $1;`

	listExtremaSQL = `SELECT instrument, high, high_ts, low, low_ts
    FROM extrema
    ORDER BY instrument;`

	upsertScheduleSQL = `INSERT INTO schedules (id, time_of_day, day_rule, target, message, enabled, last_fired)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (id) DO UPDATE
    SET time_of_day = EXCLUDED.time_of_day,
        day_rule    = EXCLUDED.day_rule,
        target      = EXCLUDED.target,
        message     = EXCLUDED.message,
        enabled     = EXCLUDED.enabled,
        last_fired  = EXCLUDED.last_fired;`

	listSchedulesSQL = `SELECT id, time_of_day, day_rule, target, message, enabled, last_fired
    FROM schedules
    ORDER BY id;`

	deleteScheduleSQL = `DELETE FROM schedules WHERE id = $1;`
)

// TickStore persists raw price observations.
type TickStore interface {
	InsertTick(ctx context.Context, tick PriceTick) error
	ListTicksBetween(ctx context.Context, instrument string, from, to time.Time) ([]PriceTick, error)
	ListRecentTicks(ctx context.Context, limit int) ([]PriceTick, error)
}

// SignalStore logs derived signals.
type SignalStore interface {
	InsertSignal(ctx context.Context, rec SignalRecord) error
}

// AlertLogStore audits dispatched alerts and feeds brief composition.
type AlertLogStore interface {
	InsertAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// GamePriceStore persists storefront observations.
type GamePriceStore interface {
	InsertGamePrice(ctx context.Context, rec GamePriceRecord) error
	ListRecentGamePrices(ctx context.Context, limit int) ([]GamePriceRecord, error)
}

// TradeStore persists the paper-trading ledger.
type TradeStore interface {
	InsertTrade(ctx context.Context, rec TradeRecord) error
}

// ExtremaStore mirrors all-time extrema durably.
type ExtremaStore interface {
	UpsertExtrema(ctx context.Context, rec ExtremaRecord) error
	GetExtrema(ctx context.Context, instrument string) (ExtremaRecord, bool, error)
	ListExtrema(ctx context.Context) ([]ExtremaRecord, error)
}

// ScheduleStore keeps schedule items with whole-row atomicity.
type ScheduleStore interface {
	UpsertSchedule(ctx context.Context, rec ScheduleRecord) error
	ListSchedules(ctx context.Context) ([]ScheduleRecord, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// Store aggregates all persistence concerns behind one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertTick appends one price observation.
func (s *Store) InsertTick(ctx context.Context, tick PriceTick) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertTickSQL, tick.At, tick.Instrument, tick.Price, tick.Source); execErr != nil {
		return fmt.Errorf("insert tick: %w", execErr)
	}
	return nil
}

// ListTicksBetween lists one instrument's ticks inside a window.
func (s *Store) ListTicksBetween(ctx context.Context, instrument string, from, to time.Time) ([]PriceTick, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listTicksBetweenSQL, instrument, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list ticks between: %w", queryErr)
	}
	defer rows.Close()
	return scanTicks(rows)
}

// ListRecentTicks lists the most recent ticks across all instruments.
func (s *Store) ListRecentTicks(ctx context.Context, limit int) ([]PriceTick, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentTicksSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent ticks: %w", queryErr)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func scanTicks(rows pgx.Rows) ([]PriceTick, error) {
	ticks := make([]PriceTick, 0)
	for rows.Next() {
		var tick PriceTick
		if err := rows.Scan(&tick.At, &tick.Instrument, &tick.Price, &tick.Source); err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ticks, nil
}

// InsertSignal logs one derived signal.
func (s *Store) InsertSignal(ctx context.Context, rec SignalRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertSignalSQL, rec.At, rec.Instrument, rec.Kind, rec.Value, rec.Note); execErr != nil {
		return fmt.Errorf("insert signal: %w", execErr)
	}
	return nil
}

// InsertAlert appends a dispatched alert.
func (s *Store) InsertAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var dedupe any
	if rec.DedupeKey != "" {
		dedupe = rec.DedupeKey
	}

	row := pool.QueryRow(ctx, insertAlertSQL, rec.At, rec.Domain, rec.Subject, rec.Message, dedupe)

	var out AlertRecord
	var dedupeCol sql.NullString
	if scanErr := row.Scan(&out.ID, &out.At, &out.Domain, &out.Subject, &out.Message, &dedupeCol, &out.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	if dedupeCol.Valid {
		out.DedupeKey = dedupeCol.String
	}
	return out, nil
}

// ListRecentAlerts lists most recent alerts, newest first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		var dedupeCol sql.NullString
		if err := rows.Scan(&rec.ID, &rec.At, &rec.Domain, &rec.Subject, &rec.Message, &dedupeCol, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if dedupeCol.Valid {
			rec.DedupeKey = dedupeCol.String
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// InsertGamePrice appends one storefront observation.
func (s *Store) InsertGamePrice(ctx context.Context, rec GamePriceRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var normal any
	if rec.NormalPrice != nil {
		normal = rec.NormalPrice.String()
	}

	if _, execErr := pool.Exec(ctx, insertGamePriceSQL,
		rec.At, rec.Slug, rec.Store, rec.Price.String(), normal, rec.IsLowest,
	); execErr != nil {
		return fmt.Errorf("insert game price: %w", execErr)
	}
	return nil
}

// ListRecentGamePrices lists the most recent storefront observations.
func (s *Store) ListRecentGamePrices(ctx context.Context, limit int) ([]GamePriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentGamePricesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent game prices: %w", queryErr)
	}
	defer rows.Close()

	records := make([]GamePriceRecord, 0, limit)
	for rows.Next() {
		var rec GamePriceRecord
		var priceStr string
		var normal sql.NullString
		if err := rows.Scan(&rec.ID, &rec.At, &rec.Slug, &rec.Store, &priceStr, &normal, &rec.IsLowest); err != nil {
			return nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse game price: %w", convErr)
		}
		rec.Price = price
		normalPrice, convErr := parseOptionalDecimal(normal)
		if convErr != nil {
			return nil, convErr
		}
		rec.NormalPrice = normalPrice
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// InsertTrade appends one simulated fill.
func (s *Store) InsertTrade(ctx context.Context, rec TradeRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertTradeSQL,
		rec.At, rec.Instrument, rec.Market, rec.Side, rec.Qty.String(), rec.Price.String(),
	); execErr != nil {
		return fmt.Errorf("insert trade: %w", execErr)
	}
	return nil
}

// UpsertExtrema writes one instrument's extrema as a whole row.
func (s *Store) UpsertExtrema(ctx context.Context, rec ExtremaRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertExtremaSQL,
		rec.Instrument, rec.High, rec.HighAt, rec.Low, rec.LowAt,
	); execErr != nil {
		return fmt.Errorf("upsert extrema: %w", execErr)
	}
	return nil
}

// GetExtrema reads one instrument's extrema. Absence is not an error.
func (s *Store) GetExtrema(ctx context.Context, instrument string) (ExtremaRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return ExtremaRecord{}, false, err
	}

	var rec ExtremaRecord
	row := pool.QueryRow(ctx, getExtremaSQL, instrument)
	if scanErr := row.Scan(&rec.Instrument, &rec.High, &rec.HighAt, &rec.Low, &rec.LowAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ExtremaRecord{}, false, nil
		}
		return ExtremaRecord{}, false, fmt.Errorf("get extrema: %w", scanErr)
	}
	return rec, true, nil
}

// ListExtrema lists all persisted extrema.
func (s *Store) ListExtrema(ctx context.Context) ([]ExtremaRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listExtremaSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list extrema: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ExtremaRecord, 0)
	for rows.Next() {
		var rec ExtremaRecord
		if err := rows.Scan(&rec.Instrument, &rec.High, &rec.HighAt, &rec.Low, &rec.LowAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// UpsertSchedule writes one schedule item as a whole row.
func (s *Store) UpsertSchedule(ctx context.Context, rec ScheduleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var lastFired any
	if rec.LastFired != nil {
		lastFired = *rec.LastFired
	}

	if _, execErr := pool.Exec(ctx, upsertScheduleSQL,
		rec.ID, rec.TimeOfDay, rec.DayRule, rec.Target, rec.Message, rec.Enabled, lastFired,
	); execErr != nil {
		return fmt.Errorf("upsert schedule: %w", execErr)
	}
	return nil
}

// ListSchedules lists all schedule items.
func (s *Store) ListSchedules(ctx context.Context) ([]ScheduleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listSchedulesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list schedules: %w", queryErr)
	}
	defer rows.Close()

	items := make([]ScheduleRecord, 0)
	for rows.Next() {
		var rec ScheduleRecord
		var lastFired sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.TimeOfDay, &rec.DayRule, &rec.Target, &rec.Message, &rec.Enabled, &lastFired); err != nil {
			return nil, err
		}
		if lastFired.Valid {
			value := lastFired.Time
			rec.LastFired = &value
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// DeleteSchedule removes one schedule item.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteScheduleSQL, id); execErr != nil {
		return fmt.Errorf("delete schedule: %w", execErr)
	}
	return nil
}

// parseOptionalDecimal converts a nullable numeric column.
func parseOptionalDecimal(raw sql.NullString) (*decimal.Decimal, error) {
	if !raw.Valid {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw.String)
	if err != nil {
		return nil, fmt.Errorf("parse decimal column: %w", err)
	}
	return &value, nil
}
