// File: cmd/fetch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/casperjs-driver/internal/casper"
	"github.com/xkilldash9x/casperjs-driver/internal/config"
	"github.com/xkilldash9x/casperjs-driver/internal/fetcher"
	"github.com/xkilldash9x/casperjs-driver/internal/observability"
	"github.com/xkilldash9x/casperjs-driver/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newPgxPool is swapped out in tests.
var newPgxPool = func(ctx context.Context, url string) (store.DBPool, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// fetchFlags holds the flags that are not backed by a configuration key.
type fetchFlags struct {
	headers   []string
	options   []string
	clicks    []string
	evaluate  []string
	output    string
	noContent bool
}

func newFetchCmd() *cobra.Command {
	var ff fetchFlags

	fetchCmd := &cobra.Command{
		Use:   "fetch [url...]",
		Short: "Load one or more pages in CasperJS and print what they rendered",
		Long: `Builds a CasperJS script for every URL, runs it and reports the final URL,
the rendered HTML and any wait that timed out. Results are printed as JSON or
YAML and can also be written to PostgreSQL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return runFetch(cmd.Context(), cmd.OutOrStdout(), cfg, ff, args)
		},
	}

	flags := fetchCmd.Flags()
	flags.String("command", "", "casperjs binary (default \"casperjs\")")
	flags.String("proxy", "", "proxy host:port for the engine")
	flags.String("user-agent", "", "User-Agent sent with every request")
	flags.Int("width", 0, "viewport width in pixels")
	flags.Int("height", 0, "viewport height in pixels")
	flags.StringSlice("accept-language", nil, "Accept-Language values, e.g. en-GB,en")
	flags.String("cookie-file", "", "JSON cookie jar loaded before navigation")
	flags.Bool("save-cookies", false, "write the cookie jar back to --cookie-file")
	flags.String("wait-selector", "", "CSS selector to wait for after navigation")
	flags.Duration("selector-timeout", 0, "how long to wait for --wait-selector")
	flags.Duration("wait", 0, "fixed pause before the page is captured")
	flags.IntP("concurrency", "j", 0, "number of engines run at once")
	flags.Float64("rate", 0, "maximum runs started per second (0 = unlimited)")
	flags.StringP("format", "f", "", "output format: json or yaml")
	flags.Bool("store", false, "persist results to PostgreSQL (needs CASPER_STORE_URL)")

	for name, key := range map[string]string{
		"command":          "engine.command",
		"proxy":            "engine.proxy",
		"user-agent":       "browser.user_agent",
		"width":            "browser.viewport.width",
		"height":           "browser.viewport.height",
		"accept-language":  "browser.accept_language",
		"cookie-file":      "browser.cookie_file",
		"save-cookies":     "browser.save_cookies",
		"wait-selector":    "fetch.wait_selector",
		"selector-timeout": "fetch.selector_timeout",
		"wait":             "fetch.wait",
		"concurrency":      "fetch.concurrency",
		"rate":             "fetch.rate_limit",
		"format":           "fetch.format",
		"store":            "store.enabled",
	} {
		annotateViperKey(flags, name, key)
	}

	flags.StringArrayVarP(&ff.headers, "header", "H", nil, "extra request header as 'Name: value' (repeatable)")
	flags.StringArrayVar(&ff.options, "option", nil, "extra casperjs flag as name=value (repeatable)")
	flags.StringArrayVar(&ff.clicks, "click", nil, "CSS selector to click after loading (repeatable)")
	flags.StringArrayVar(&ff.evaluate, "eval", nil, "JavaScript run inside the page (repeatable)")
	flags.StringVarP(&ff.output, "output", "o", "", "write results to this file instead of stdout")
	flags.BoolVar(&ff.noContent, "no-content", false, "omit page HTML from the printed results")

	return fetchCmd
}

func runFetch(ctx context.Context, stdout io.Writer, cfg *config.Config, ff fetchFlags, urls []string) error {
	logger := observability.GetLogger()

	recipe, err := buildRecipe(cfg, ff)
	if err != nil {
		return err
	}

	// Resolve the engine once up front so a missing binary fails the command
	// before any URL is attempted.
	engine := cfg.Engine()
	if _, err := casper.New(engine.Command); err != nil {
		return err
	}
	newDriver := func() (*casper.Driver, error) {
		return casper.New(engine.Command, casper.WithLogger(logger), casper.WithTempDir(engine.TempDir))
	}

	fetchCfg := cfg.Fetch()
	f := fetcher.New(newDriver, recipe, fetchCfg.Concurrency, fetchCfg.RateLimit, logger)
	results, err := f.FetchAll(ctx, urls)
	if err != nil {
		return fmt.Errorf("fetch aborted: %w", err)
	}

	// Results are printed before they are stored so a database failure
	// never loses the fetched pages.
	printed := results
	if ff.noContent {
		printed = make([]fetcher.Result, len(results))
		copy(printed, results)
		for i := range printed {
			printed[i].Content = ""
		}
	}

	w := stdout
	if ff.output != "" {
		file, err := os.Create(ff.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}
	if err := writeResults(w, fetchCfg.Format, printed); err != nil {
		return err
	}

	var errs []error
	if cfg.Store().Enabled {
		if err := persistResults(ctx, cfg.Store(), results, logger); err != nil {
			errs = append(errs, fmt.Errorf("failed to store results: %w", err))
		}
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d of %d fetches failed", failed, len(results)))
	}
	return errors.Join(errs...)
}

// buildRecipe merges the configured recipe with the repeatable flags.
func buildRecipe(cfg config.Interface, ff fetchFlags) (fetcher.Recipe, error) {
	recipe := fetcher.RecipeFromConfig(cfg)
	recipe.Clicks = append(recipe.Clicks, ff.clicks...)
	recipe.Evaluate = append(recipe.Evaluate, ff.evaluate...)

	if len(ff.headers) > 0 {
		headers := make(map[string]string, len(recipe.Headers)+len(ff.headers))
		for k, v := range recipe.Headers {
			headers[k] = v
		}
		for _, h := range ff.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return fetcher.Recipe{}, fmt.Errorf("invalid header %q, want 'Name: value'", h)
			}
			headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
		recipe.Headers = headers
	}

	if len(ff.options) > 0 {
		options := make(map[string]string, len(recipe.Options)+len(ff.options))
		for k, v := range recipe.Options {
			options[k] = v
		}
		for _, o := range ff.options {
			name, value, ok := strings.Cut(o, "=")
			if !ok || name == "" {
				return fetcher.Recipe{}, fmt.Errorf("invalid option %q, want name=value", o)
			}
			options[name] = value
		}
		recipe.Options = options
	}
	return recipe, nil
}

func persistResults(ctx context.Context, cfg config.StoreConfig, results []fetcher.Result, logger *zap.Logger) error {
	pool, closePool, err := newPgxPool(ctx, cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closePool()

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.SaveResults(ctx, results)
}

func writeResults(w io.Writer, format string, results []fetcher.Result) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode results as yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode results as json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
