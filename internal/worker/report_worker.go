// Package worker keeps the spreadsheet pool reports in step with the store.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"minshare/internal/amqp"
	"minshare/internal/core"
	"minshare/internal/log"
	"minshare/internal/services"
	"minshare/internal/sheets"
)

// OverviewSource builds the admin overview of a period. Invalidate must drop
// any cached copy so the next Overview reads the store.
type OverviewSource interface {
	Overview(ctx context.Context, period core.PeriodKey) (services.Overview, error)
	Invalidate(period core.PeriodKey)
}

// ReportWorker rewrites a period's report sheet whenever one of its
// documents changes, and periodically for the current period.
type ReportWorker struct {
	source   OverviewSource
	writer   sheets.ReportWriter
	resolver core.Resolver
	logger   *log.Logger
	now      func() time.Time

	group    singleflight.Group
	exports  int64
	failures int64
}

func NewReportWorker(source OverviewSource, writer sheets.ReportWriter, resolver core.Resolver, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportWorker{
		source:   source,
		writer:   writer,
		resolver: resolver,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleStatusChanged is the amqp.Handler for the change feed.
func (w *ReportWorker) HandleStatusChanged(ctx context.Context, msg *amqp.StatusChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing status change",
		log.FieldMemberID, msg.MemberID,
		log.FieldPeriod, string(msg.Period),
		log.FieldOperation, msg.Operation.String())

	if err := w.ExportPeriod(ctx, msg.Period); err != nil {
		return fmt.Errorf("export %s: %w", msg.Period, err)
	}
	return nil
}

// ExportPeriod rebuilds the overview of period from the store and writes it.
// Concurrent exports of the same period share one write.
func (w *ReportWorker) ExportPeriod(ctx context.Context, period core.PeriodKey) error {
	if err := period.Validate(); err != nil {
		return err
	}
	_, err, _ := w.group.Do(string(period), func() (any, error) {
		return nil, w.export(ctx, period)
	})
	return err
}

func (w *ReportWorker) export(ctx context.Context, period core.PeriodKey) error {
	w.source.Invalidate(period)
	ov, err := w.source.Overview(ctx, period)
	if err != nil {
		atomic.AddInt64(&w.failures, 1)
		return fmt.Errorf("build overview: %w", err)
	}
	if err := w.writer.WriteReport(ctx, sheets.NewReport(ov, w.now())); err != nil {
		atomic.AddInt64(&w.failures, 1)
		w.logger.ErrorContext(ctx, "Failed to write report",
			log.NewFields().
				WithOperation(log.OpExport).
				With(log.FieldPeriod, string(period)).
				WithError(err).
				ToSlice()...)
		return fmt.Errorf("write report: %w", err)
	}
	atomic.AddInt64(&w.exports, 1)
	w.logger.InfoContext(ctx, "Report exported",
		log.FieldPeriod, string(period),
		"members", ov.Summary.Members,
		"total_pool", ov.Summary.Total.String())
	return nil
}

// StartupExport writes the current period once so a worker that was down
// catches up without waiting for the next change.
func (w *ReportWorker) StartupExport(ctx context.Context) error {
	period := w.resolver.CurrentPeriodKey()
	if err := w.ExportPeriod(ctx, period); err != nil {
		return fmt.Errorf("startup export %s: %w", period, err)
	}
	return nil
}

// RunPeriodic re-exports the current period every interval until ctx is
// done. Failures are logged and retried on the next tick.
func (w *ReportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			period := w.resolver.CurrentPeriodKey()
			if err := w.ExportPeriod(ctx, period); err != nil {
				w.logger.WarnContext(ctx, "Periodic export failed",
					log.FieldPeriod, string(period),
					log.FieldError, err.Error())
			}
		}
	}
}

// Stats counts exports by outcome.
type Stats struct {
	Exports  int64
	Failures int64
}

func (w *ReportWorker) Stats() Stats {
	return Stats{
		Exports:  atomic.LoadInt64(&w.exports),
		Failures: atomic.LoadInt64(&w.failures),
	}
}
