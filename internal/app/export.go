package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"desk-sentinel/internal/storage"
)

// Export renders one instrument's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Instrument == "" {
		return errors.New("--instrument is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Stocks.PollInterval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	ticks, err := store.ListTicksBetween(ctx, opts.Instrument, from, to)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		a.Logger.Info().Str("instrument", opts.Instrument).Msg("no ticks found for export window")
		return nil
	}

	downsampled := downsampleTicks(ticks, opts.MaxPoints)
	a.Logger.Info().Int("total", len(ticks)).Int("exported", len(downsampled)).Msg("exporting ticks")

	if opts.CSVPath != "" {
		if err := writeTicksCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeTicksPNG(opts.PNGPath, opts.Instrument, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleTicks(ticks []storage.PriceTick, max int) []storage.PriceTick {
	if max <= 0 || len(ticks) <= max {
		return ticks
	}

	result := make([]storage.PriceTick, 0, max)
	step := float64(len(ticks)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(ticks) {
			idx = len(ticks) - 1
		}
		result = append(result, ticks[idx])
	}
	return result
}

func writeTicksCSV(path string, ticks []storage.PriceTick) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "instrument", "price", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tick := range ticks {
		record := []string{
			tick.At.Format(time.RFC3339),
			tick.Instrument,
			formatPrice(tick.Price),
			tick.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeTicksPNG(path, instrument string, ticks []storage.PriceTick) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(ticks))
	prices := make([]float64, len(ticks))
	for i, tick := range ticks {
		x[i] = tick.At
		prices[i] = tick.Price
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    instrument,
				XValues: x,
				YValues: prices,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
