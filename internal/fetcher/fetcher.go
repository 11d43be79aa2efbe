// File: internal/fetcher/fetcher.go
package fetcher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/casperjs-driver/internal/casper"
)

// DriverFactory returns a fresh driver for one job. Jobs never share a driver.
type DriverFactory func() (*casper.Driver, error)

// Result is the outcome of fetching one URL.
type Result struct {
	ID          string                 `json:"id" yaml:"id"`
	URL         string                 `json:"url" yaml:"url"`
	CurrentURL  string                 `json:"current_url,omitempty" yaml:"current_url,omitempty"`
	Title       string                 `json:"title,omitempty" yaml:"title,omitempty"`
	Content     string                 `json:"content,omitempty" yaml:"content,omitempty"`
	Timeouts    []casper.TimeoutNotice `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`
	Diagnostics []string               `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Duration    time.Duration          `json:"duration" yaml:"duration"`
	FetchedAt   time.Time              `json:"fetched_at" yaml:"fetched_at"`
	Error       string                 `json:"error,omitempty" yaml:"error,omitempty"`
	// Complete is set when the run reached its closing step.
	Complete bool `json:"complete" yaml:"complete"`
}

// Fetcher runs one casper driver per URL with bounded concurrency.
type Fetcher struct {
	newDriver   DriverFactory
	recipe      Recipe
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// New returns a fetcher. A ratePerSecond of zero disables rate limiting.
func New(newDriver DriverFactory, recipe Recipe, concurrency int, ratePerSecond float64, logger *zap.Logger) *Fetcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		newDriver:   newDriver,
		recipe:      recipe,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger.Named("fetcher"),
	}
}

// FetchAll fetches every url and returns results in input order. A failing
// URL is reported in its Result and does not stop the others; only context
// cancellation aborts the batch.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Result, error) {
	results := make([]Result, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			if err := f.limiter.Wait(gctx); err != nil {
				return err
			}
			results[i] = f.fetch(gctx, url)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (f *Fetcher) fetch(ctx context.Context, url string) Result {
	res := Result{ID: uuid.NewString(), URL: url, FetchedAt: time.Now().UTC()}
	logger := f.logger.With(zap.String("fetch_id", res.ID), zap.String("url", url))

	d, err := f.newDriver()
	if err != nil {
		res.Error = err.Error()
		logger.Error("Failed to create driver.", zap.Error(err))
		return res
	}
	f.recipe.Apply(d, url)

	start := time.Now()
	out, err := d.Run(ctx)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		logger.Error("Fetch failed.", zap.Error(err))
		return res
	}

	// The closing step prints the URL and then the content, so a run that
	// printed no content never finished it.
	res.CurrentURL, _ = out.CurrentURL()
	res.Content, res.Complete = out.PageContent()
	res.Title = out.Title()
	res.Timeouts = out.Timeouts()
	res.Diagnostics = out.Diagnostics()

	for _, n := range res.Timeouts {
		logger.Warn("Wait timed out.", zap.String("notice", n.String()))
	}
	logger.Info("Fetched page.",
		zap.String("current_url", res.CurrentURL),
		zap.Bool("complete", res.Complete),
		zap.Duration("duration", res.Duration),
	)
	return res
}
