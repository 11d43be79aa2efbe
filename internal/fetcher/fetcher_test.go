// File: internal/fetcher/fetcher_test.go
package fetcher

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/casperjs-driver/internal/casper"
	"github.com/xkilldash9x/casperjs-driver/internal/config"
)

// fakeRunner answers every run from a callback and tracks concurrency.
type fakeRunner struct {
	mu      sync.Mutex
	scripts []string
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	respond func(script string) ([]string, error)
}

func (r *fakeRunner) Run(ctx context.Context, script string, _ []string) ([]string, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	r.scripts = append(r.scripts, script)
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.respond(script)
}

// factoryFor builds drivers on the test binary itself, which always exists.
func factoryFor(t *testing.T, r casper.Runner) DriverFactory {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)
	return func() (*casper.Driver, error) {
		return casper.New(self, casper.WithRunner(r))
	}
}

func pageFor(script string) ([]string, error) {
	switch {
	case strings.Contains(script, `"http://fail/"`):
		return nil, &casper.InvocationError{Command: "casperjs", Err: errors.New("boom")}
	case strings.Contains(script, `"http://partial/"`):
		return []string{"CURRENT_URL:http://partial/landing"}, nil
	case strings.Contains(script, `"http://slow/"`):
		return []string{"TIMEOUT:#main not found after 10 ms"}, nil
	}
	i := strings.Index(script, `this.open("`)
	url := script[i+len(`this.open("`):]
	url = url[:strings.Index(url, `"`)]
	return []string{
		"[debug] noise",
		"CURRENT_URL:" + url,
		`PAGE_CONTENT:"<html><head><title>` + url + `</title></head></html>"`,
	}, nil
}

func TestFetchAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &fakeRunner{respond: pageFor}
	f := New(factoryFor(t, runner), Recipe{WaitSelector: "#main", SelectorTimeout: 10 * time.Millisecond}, 2, 0, zap.NewNop())

	urls := []string{"http://a/", "http://fail/", "http://slow/", "http://b/"}
	results, err := f.FetchAll(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, url := range urls {
		assert.Equal(t, url, results[i].URL, "results keep input order")
		assert.NotEmpty(t, results[i].ID)
	}

	assert.True(t, results[0].Complete)
	assert.Equal(t, "http://a/", results[0].CurrentURL)
	assert.Equal(t, "http://a/", results[0].Title)
	assert.Equal(t, []string{"[debug] noise"}, results[0].Diagnostics)

	assert.Contains(t, results[1].Error, "boom")
	assert.False(t, results[1].Complete)

	assert.False(t, results[2].Complete)
	require.Len(t, results[2].Timeouts, 1)
	assert.Equal(t, "#main", results[2].Timeouts[0].Selector)

	assert.Equal(t, "http://b/", results[3].CurrentURL)
	assert.Len(t, runner.scripts, 4, "one run per URL")
	for _, s := range runner.scripts {
		assert.Equal(t, 1, strings.Count(s, "this.open("), "drivers are not shared between jobs")
	}
}

func TestFetchAll_URLWithoutContent(t *testing.T) {
	runner := &fakeRunner{respond: pageFor}
	f := New(factoryFor(t, runner), Recipe{}, 1, 0, nil)

	results, err := f.FetchAll(context.Background(), []string{"http://partial/"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "http://partial/landing", results[0].CurrentURL)
	assert.Empty(t, results[0].Content)
	assert.False(t, results[0].Complete, "a URL without page content did not finish the closing step")
	assert.Empty(t, results[0].Error)
}

func TestFetchAll_Concurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &fakeRunner{respond: pageFor, delay: 20 * time.Millisecond}
	f := New(factoryFor(t, runner), Recipe{}, 2, 0, nil)

	_, err := f.FetchAll(context.Background(), []string{"http://1/", "http://2/", "http://3/", "http://4/", "http://5/"})
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestFetchAll_RateLimit(t *testing.T) {
	runner := &fakeRunner{respond: pageFor}
	f := New(factoryFor(t, runner), Recipe{}, 4, 20, nil)

	start := time.Now()
	_, err := f.FetchAll(context.Background(), []string{"http://1/", "http://2/", "http://3/"})
	require.NoError(t, err)
	// Burst of one, then 50ms per token.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestFetchAll_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &fakeRunner{respond: pageFor, delay: time.Second}
	f := New(factoryFor(t, runner), Recipe{}, 1, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.FetchAll(ctx, []string{"http://1/", "http://2/"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchAll_DriverFactoryError(t *testing.T) {
	f := New(func() (*casper.Driver, error) {
		return nil, &casper.ConfigurationError{Command: "casperjs", Err: errors.New("missing")}
	}, Recipe{}, 1, 0, nil)

	results, err := f.FetchAll(context.Background(), []string{"http://a/"})
	require.NoError(t, err)
	assert.Contains(t, results[0].Error, "missing")
}

func TestRecipe_Apply(t *testing.T) {
	runner := &fakeRunner{respond: pageFor}
	d, err := factoryFor(t, runner)()
	require.NoError(t, err)

	r := Recipe{
		UserAgent:       "UA/1.0",
		ViewportWidth:   800,
		ViewportHeight:  600,
		AcceptLanguage:  []string{"fr", "en"},
		Headers:         map[string]string{"x-test": "1", "accept-encoding": "gzip"},
		CookieFile:      "/nonexistent/cookies.json",
		SaveCookies:     true,
		WaitSelector:    "#main",
		SelectorTimeout: 1500 * time.Millisecond,
		Clicks:          []string{"#accept"},
		Evaluate:        []string{"window.scrollTo(0, 1000);"},
		Wait:            250 * time.Millisecond,
		Proxy:           "127.0.0.1:3128",
		Options:         map[string]string{"ignore-ssl-errors": "true"},
	}
	r.Apply(d, "http://x/")

	script := d.Script()
	order := []string{
		`this.open("http://x/", null);`,
		`casper.userAgent("UA/1.0");`,
		`"Accept-Language": "fr,en"`,
		`"x-test": "1"`,
		"this.viewport(800, 600);",
		`"#main",`,
		`this.click("#accept");`,
		"window.scrollTo(0, 1000);",
		"after waiting 250 ms",
		`fs.write("/nonexistent/cookies.json"`,
	}
	last := -1
	for _, want := range order {
		idx := strings.Index(script, want)
		require.GreaterOrEqual(t, idx, 0, "missing %q", want)
		assert.Greater(t, idx, last, "%q out of order", want)
		last = idx
	}
	assert.NotContains(t, script, "gzip")
	assert.NotContains(t, script, "phantom.cookies = ", "missing cookie file is a no-op")
	assert.Contains(t, script, "1500\n);")
	assert.Equal(t, "--ignore-ssl-errors=true --proxy=127.0.0.1:3128", d.Options().Build())
}

func TestRecipe_AcceptLanguageReplacesConfiguredHeader(t *testing.T) {
	d, err := factoryFor(t, &fakeRunner{respond: pageFor})()
	require.NoError(t, err)

	Recipe{
		// viper delivers config map keys lower-cased.
		Headers:        map[string]string{"accept-language": "de", "x-test": "1"},
		AcceptLanguage: []string{"fr", "en"},
	}.Apply(d, "http://x/")

	script := strings.ToLower(d.Script())
	assert.Equal(t, 1, strings.Count(script, `"accept-language"`))
	assert.Contains(t, d.Script(), `"Accept-Language": "fr,en"`)
	assert.Contains(t, d.Script(), `"x-test": "1"`)
	assert.NotContains(t, d.Script(), `"de"`)
}

func TestRecipe_Minimal(t *testing.T) {
	d, err := factoryFor(t, &fakeRunner{respond: pageFor})()
	require.NoError(t, err)

	Recipe{}.Apply(d, "http://x/")
	frags := d.Fragments()
	require.Len(t, frags, 2, "only the preamble and the navigation")
	assert.Equal(t, "", d.Options().Build())
}

func TestRecipeFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.UserAgent = "UA"
	cfg.EngineCfg.Proxy = "p:1"
	cfg.FetchCfg.WaitSelector = "#x"

	r := RecipeFromConfig(cfg)
	assert.Equal(t, "UA", r.UserAgent)
	assert.Equal(t, "p:1", r.Proxy)
	assert.Equal(t, "#x", r.WaitSelector)
	assert.Equal(t, 10*time.Second, r.SelectorTimeout)
	assert.Equal(t, 1280, r.ViewportWidth)
}
