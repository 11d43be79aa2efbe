// File: internal/casper/output.go
package casper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// TimeoutNotice is one TIMEOUT line. Selector is empty for plain waits.
type TimeoutNotice struct {
	Selector string        `json:"selector,omitempty" yaml:"selector,omitempty"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	Raw      string        `json:"raw" yaml:"raw"`
}

func (n TimeoutNotice) String() string {
	if n.Selector == "" {
		return fmt.Sprintf("timed out after %s", n.Elapsed)
	}
	return fmt.Sprintf("selector %q not found after %s", n.Selector, n.Elapsed)
}

// timeoutPattern matches "<selector> [not found] after [waiting] <n> ms".
// The selector group is lazy-optional so an empty selector does not swallow
// "not found". Older scripts wrapped the selector as $(<selector>).
var timeoutPattern = regexp.MustCompile(`^(?:(.*?)\s+)??(?:not found\s+)?after\s+(?:waiting\s+)?(\d+)\s*ms\s*$`)

// Output is the parsed result of one run. It is not modified after
// ParseOutput returns.
type Output struct {
	lines       []string
	diagnostics []string
	currentURL  *string
	pageContent *string
	timeouts    []TimeoutNotice
}

// ParseOutput classifies the engine's stdout lines by tag. Missing tags are
// not an error: a run that never reaches the closing step has neither a
// current URL nor page content.
func ParseOutput(lines []string) *Output {
	out := &Output{lines: append([]string(nil), lines...)}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, TagCurrentURL):
			v := strings.TrimPrefix(line, TagCurrentURL)
			out.currentURL = &v
		case strings.HasPrefix(line, TagPageContent):
			v := decodePageContent(strings.TrimPrefix(line, TagPageContent))
			out.pageContent = &v
		case strings.HasPrefix(line, TagTimeout):
			out.timeouts = append(out.timeouts, parseTimeout(strings.TrimPrefix(line, TagTimeout)))
		default:
			out.diagnostics = append(out.diagnostics, line)
		}
	}
	return out
}

// decodePageContent undoes the JSON encoding applied by the closing step.
// Content that is not a JSON string is returned as is.
func decodePageContent(v string) string {
	if !strings.HasPrefix(v, `"`) {
		return v
	}
	var decoded string
	if err := json.UnmarshalFromString(v, &decoded); err != nil {
		return v
	}
	return decoded
}

func parseTimeout(body string) TimeoutNotice {
	notice := TimeoutNotice{Raw: body}
	m := timeoutPattern.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return notice
	}
	sel := m[1]
	if strings.HasPrefix(sel, "$(") && strings.HasSuffix(sel, ")") {
		sel = sel[2 : len(sel)-1]
	}
	notice.Selector = sel
	if ms, err := strconv.ParseInt(m[2], 10, 64); err == nil {
		notice.Elapsed = time.Duration(ms) * time.Millisecond
	}
	return notice
}

// Lines returns every captured stdout line, tagged or not.
func (o *Output) Lines() []string { return append([]string(nil), o.lines...) }

// Diagnostics returns the lines that carried no known tag.
func (o *Output) Diagnostics() []string { return append([]string(nil), o.diagnostics...) }

// CurrentURL returns the final URL, if the run reported one.
func (o *Output) CurrentURL() (string, bool) {
	if o.currentURL == nil {
		return "", false
	}
	return *o.currentURL, true
}

// PageContent returns the final page HTML, if the run reported it.
func (o *Output) PageContent() (string, bool) {
	if o.pageContent == nil {
		return "", false
	}
	return *o.pageContent, true
}

// Timeouts returns the TIMEOUT notices in the order they were printed.
func (o *Output) Timeouts() []TimeoutNotice {
	return append([]TimeoutNotice(nil), o.timeouts...)
}

// TimedOut reports whether any wait timed out.
func (o *Output) TimedOut() bool { return len(o.timeouts) > 0 }

// Document parses the page content as HTML.
func (o *Output) Document() (*goquery.Document, error) {
	content, ok := o.PageContent()
	if !ok {
		return nil, fmt.Errorf("run produced no page content")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(content))
}

// Title returns the trimmed <title> of the page, or "".
func (o *Output) Title() string {
	doc, err := o.Document()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Select returns the trimmed text of every element matching selector.
func (o *Output) Select(selector string) ([]string, error) {
	doc, err := o.Document()
	if err != nil {
		return nil, err
	}
	var texts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts, nil
}
