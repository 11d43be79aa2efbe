// File: internal/fetcher/recipe.go
package fetcher

import (
	"strings"
	"time"

	"github.com/xkilldash9x/casperjs-driver/internal/casper"
	"github.com/xkilldash9x/casperjs-driver/internal/config"
)

// Recipe is the list of page manipulations applied to every URL of a batch.
type Recipe struct {
	UserAgent       string
	ViewportWidth   int
	ViewportHeight  int
	AcceptLanguage  []string
	Headers         map[string]string
	CookieFile      string
	SaveCookies     bool
	WaitSelector    string
	SelectorTimeout time.Duration
	Clicks          []string
	Evaluate        []string
	Wait            time.Duration
	Proxy           string
	Options         map[string]string
}

// RecipeFromConfig builds a recipe from the browser, engine and fetch sections.
func RecipeFromConfig(cfg config.Interface) Recipe {
	b, e, f := cfg.Browser(), cfg.Engine(), cfg.Fetch()
	return Recipe{
		UserAgent:       b.UserAgent,
		ViewportWidth:   b.Viewport.Width,
		ViewportHeight:  b.Viewport.Height,
		AcceptLanguage:  b.AcceptLanguage,
		Headers:         b.Headers,
		CookieFile:      b.CookieFile,
		SaveCookies:     b.SaveCookies,
		WaitSelector:    f.WaitSelector,
		SelectorTimeout: f.SelectorTimeout,
		Wait:            f.Wait,
		Proxy:           e.Proxy,
		Options:         e.Options,
	}
}

// Apply emits the recipe for url onto d.
//
// casper.page only exists once casper.start() has been called, so the
// navigation step comes before the header object. Accept-Language is merged
// into the same header object since each SetHeaders replaces the previous one.
func (r Recipe) Apply(d *casper.Driver, url string) *casper.Driver {
	for name, value := range r.Options {
		d.AddOption(name, value)
	}
	if r.Proxy != "" {
		d.UseProxy(r.Proxy)
	}
	if r.CookieFile != "" {
		d.LoadCookies(r.CookieFile)
	}

	d.Start(url, casper.NoOpenOptions())

	if r.UserAgent != "" {
		d.SetUserAgent(r.UserAgent)
	}
	if headers := r.headers(); len(headers) > 0 {
		d.SetHeaders(headers)
	}
	if r.ViewportWidth > 0 && r.ViewportHeight > 0 {
		d.SetViewPort(r.ViewportWidth, r.ViewportHeight)
	}
	if r.WaitSelector != "" {
		d.WaitForSelector(r.WaitSelector, int(r.SelectorTimeout/time.Millisecond))
	}
	for _, sel := range r.Clicks {
		d.Click(sel)
	}
	for _, code := range r.Evaluate {
		d.Evaluate(code)
	}
	if r.Wait > 0 {
		d.WaitDuration(r.Wait)
	}
	if r.SaveCookies && r.CookieFile != "" {
		d.SaveCookies(r.CookieFile)
	}
	return d
}

func (r Recipe) headers() casper.Headers {
	headers := casper.Headers{}
	for name, value := range r.Headers {
		headers[name] = []string{value}
	}
	if len(r.AcceptLanguage) > 0 {
		for name := range headers {
			if strings.EqualFold(name, "Accept-Language") {
				delete(headers, name)
			}
		}
		headers["Accept-Language"] = r.AcceptLanguage
	}
	return headers
}
