package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// DefaultRefreshPageSize is the page size used by scheduled harvests.
const DefaultRefreshPageSize = 20

// KeywordProvider supplies the keyword list for one refresh run.
type KeywordProvider func(ctx context.Context) ([]string, error)

// StaticKeywords adapts a fixed keyword list into a KeywordProvider.
func StaticKeywords(keywords []string) KeywordProvider {
	return func(context.Context) ([]string, error) {
		return keywords, nil
	}
}

// AutoRefresher re-harvests a keyword list on a fixed interval so
// origin rows track upstream price and stock movement.
type AutoRefresher struct {
	harvest  *HarvestService
	keywords KeywordProvider
	interval time.Duration
	pageSize int
	cron     *cron.Cron
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewAutoRefresher creates an auto refresher. pageSize falls back to
// DefaultRefreshPageSize when not positive.
func NewAutoRefresher(
	harvest *HarvestService,
	keywords KeywordProvider,
	interval time.Duration,
	pageSize int,
	logger *slog.Logger,
) *AutoRefresher {
	if pageSize <= 0 {
		pageSize = DefaultRefreshPageSize
	}
	return &AutoRefresher{
		harvest:  harvest,
		keywords: keywords,
		interval: interval,
		pageSize: pageSize,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules the refresh loop.
func (r *AutoRefresher) Start() error {
	if r.interval <= 0 {
		return apperrors.InvalidInput("refresh interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.refresh(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule refresh: %w", err)
	}
	r.cron.Start()

	r.logger.Info("auto refresh scheduled",
		slog.Duration("interval", r.interval),
		slog.Int("page_size", r.pageSize),
	)
	return nil
}

// Stop cancels the refresh context and waits for an in-flight run to
// finish.
func (r *AutoRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.cron.Stop().Done()
}

// refresh harvests the first result page of every configured keyword.
// One keyword's failure never stops the rest of the run.
func (r *AutoRefresher) refresh(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "auto refresh panicked", slog.Any("panic", rec))
		}
	}()

	keywords, err := r.keywords(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "keyword provider failed", slog.Any("error", err))
		return
	}

	started := time.Now()
	var refreshed, failed int
	for _, keyword := range keywords {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.harvest.HarvestByKeyword(ctx, keyword, 1, r.pageSize); err != nil {
			failed++
			r.logger.ErrorContext(ctx, "keyword refresh failed",
				slog.String("keyword", keyword),
				slog.Any("error", err),
			)
			continue
		}
		refreshed++
	}

	r.logger.InfoContext(ctx, "auto refresh completed",
		slog.Int("keywords", len(keywords)),
		slog.Int("refreshed", refreshed),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(started)),
	)
}
