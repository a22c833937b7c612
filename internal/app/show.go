package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent ticks, alerts, extrema, and game prices.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	ticks, err := store.ListRecentTicks(ctx, opts.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(writer, "Recent ticks")
	if len(ticks) == 0 {
		fmt.Fprintln(writer, "  (none)")
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tInstrument\tPrice\tSource")
		for _, tick := range ticks {
			fmt.Fprintf(writer, "%s\t%s\t%.4f\t%s\n",
				tick.At.UTC().Format(time.RFC3339), tick.Instrument, tick.Price, tick.Source)
		}
	}
	fmt.Fprintln(writer)

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(writer, "Recent alerts")
	if len(alerts) == 0 {
		fmt.Fprintln(writer, "  (none)")
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tDomain\tSubject\tMessage")
		for _, alert := range alerts {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
				alert.At.UTC().Format(time.RFC3339), alert.Domain, alert.Subject, sanitizeInline(alert.Message))
		}
	}
	fmt.Fprintln(writer)

	extrema, err := store.ListExtrema(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(writer, "All-time extrema")
	if len(extrema) == 0 {
		fmt.Fprintln(writer, "  (none)")
	} else {
		fmt.Fprintln(writer, "Instrument\tHigh\tHigh at (UTC)\tLow\tLow at (UTC)")
		for _, rec := range extrema {
			fmt.Fprintf(writer, "%s\t%.4f\t%s\t%.4f\t%s\n",
				rec.Instrument, rec.High, rec.HighAt.UTC().Format(time.RFC3339),
				rec.Low, rec.LowAt.UTC().Format(time.RFC3339))
		}
	}
	fmt.Fprintln(writer)

	gamePrices, err := store.ListRecentGamePrices(ctx, opts.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(writer, "Recent game prices")
	if len(gamePrices) == 0 {
		fmt.Fprintln(writer, "  (none)")
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tSlug\tStore\tPrice\tNormal\tLowest")
		for _, rec := range gamePrices {
			normal := "-"
			if rec.NormalPrice != nil {
				normal = rec.NormalPrice.StringFixed(2)
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%t\n",
				rec.At.UTC().Format(time.RFC3339), rec.Slug, rec.Store,
				rec.Price.StringFixed(2), normal, rec.IsLowest)
		}
	}

	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
