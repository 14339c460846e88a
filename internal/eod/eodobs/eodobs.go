package eodobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/tradelog"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func day(t time.Time) string {
	return t.In(tradelog.KST).Format("2006-01-02")
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()
	span.SetAttributes(attribute.String("eod.date", day(t)))

	return oes.summarize(ctx, day(t), func() (string, error) {
		return oes.summarizer.SummarizeDay(t)
	})
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeToday")
	defer span.End()

	return oes.summarize(ctx, "today", oes.summarizer.SummarizeToday)
}

func (oes *observableEodSummarizer) summarize(ctx context.Context, date string, fn func() (string, error)) (string, error) {
	start := time.Now()
	csvPath, err := fn()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "EOD summary generation failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 2, "No journal found for EOD summary", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 2, "EOD summary written",
		"date", date,
		"csv_path", csvPath,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return csvPath, nil
}

func (oes *observableEodSummarizer) ShouldRunNow() (bool, time.Time) {
	ctx, span := trace.StartSpan(context.Background(), "eod.ShouldRunNow")
	defer span.End()

	shouldRun, t := oes.summarizer.ShouldRunNow()
	span.SetAttributes(attribute.Bool("eod.should_run", shouldRun), attribute.String("eod.date", day(t)))

	logger.DebugSkip(ctx, 1, "EOD check completed",
		"should_run", shouldRun,
		"date", day(t),
	)
	return shouldRun, t
}
