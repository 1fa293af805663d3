// Package worker recomputes monthly summaries in response to transaction
// mutation events. It gives operators a running income/expense/balance
// readout in the logs without touching the HTTP path.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/events"
)

// MonthReader is the slice of the store the worker needs.
type MonthReader interface {
	ListTransactionsByMonth(ctx context.Context, month string) ([]core.Record, error)
}

// SummaryWorker reacts to transaction events by reloading the affected
// month and logging its recomputed summary.
type SummaryWorker struct {
	store MonthReader
}

func NewSummaryWorker(store MonthReader) *SummaryWorker {
	return &SummaryWorker{store: store}
}

// HandleEvent processes a single transaction event from the bus.
func (w *SummaryWorker) HandleEvent(ctx context.Context, evt *events.TransactionEvent) error {
	if evt.Month == "" {
		slog.WarnContext(ctx, "Skipping event without month",
			"kind", evt.Kind,
			"id", evt.ID)
		return nil
	}

	records, err := w.store.ListTransactionsByMonth(ctx, evt.Month)
	if err != nil {
		return fmt.Errorf("load month %s: %w", evt.Month, err)
	}

	summaries := core.Summarize(records)
	summary := summaryFor(summaries, evt.Month)

	slog.InfoContext(ctx, "Month summary recomputed",
		"trigger", evt.Kind,
		"transaction_id", evt.ID,
		"month", evt.Month,
		"record_count", len(records),
		"income", summary.Income.Display(),
		"expenses", summary.Expenses.Display(),
		"balance", summary.Balance.Display())

	return nil
}

// summaryFor returns the summary for month, or a zeroed one when the month
// has no records left (a delete can empty it).
func summaryFor(summaries []core.MonthSummary, month string) core.MonthSummary {
	for _, s := range summaries {
		if s.Month == month {
			return s
		}
	}
	return core.MonthSummary{Month: month}
}
