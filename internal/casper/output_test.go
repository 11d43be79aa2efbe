package casper

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput(t *testing.T) {
	t.Run("classifies tagged lines", func(t *testing.T) {
		out := ParseOutput([]string{
			"noise",
			"CURRENT_URL:http://example.com/",
			"PAGE_CONTENT:<html></html>",
			"TIMEOUT:selector-x after 5000 ms",
		})

		url, ok := out.CurrentURL()
		require.True(t, ok)
		assert.Equal(t, "http://example.com/", url)

		content, ok := out.PageContent()
		require.True(t, ok)
		assert.Equal(t, "<html></html>", content)

		require.Len(t, out.Timeouts(), 1)
		n := out.Timeouts()[0]
		assert.Equal(t, "selector-x", n.Selector)
		assert.Equal(t, 5000*time.Millisecond, n.Elapsed)

		assert.Equal(t, []string{"noise"}, out.Diagnostics())
		assert.Len(t, out.Lines(), 4)
		assert.True(t, out.TimedOut())
	})

	t.Run("missing tags are optional", func(t *testing.T) {
		out := ParseOutput([]string{"[info] [phantom] Starting..."})
		_, ok := out.CurrentURL()
		assert.False(t, ok)
		_, ok = out.PageContent()
		assert.False(t, ok)
		assert.Empty(t, out.Timeouts())
		assert.False(t, out.TimedOut())
	})

	t.Run("empty tagged values are still present", func(t *testing.T) {
		out := ParseOutput([]string{"CURRENT_URL:", "PAGE_CONTENT:"})
		url, ok := out.CurrentURL()
		assert.True(t, ok)
		assert.Equal(t, "", url)
		_, ok = out.PageContent()
		assert.True(t, ok)
	})

	t.Run("last tagged line wins", func(t *testing.T) {
		out := ParseOutput([]string{
			"CURRENT_URL:http://a/", "PAGE_CONTENT:<p>a</p>",
			"CURRENT_URL:http://b/", "PAGE_CONTENT:<p>b</p>",
		})
		url, _ := out.CurrentURL()
		content, _ := out.PageContent()
		assert.Equal(t, "http://b/", url)
		assert.Equal(t, "<p>b</p>", content)
	})

	t.Run("json encoded content is decoded", func(t *testing.T) {
		out := ParseOutput([]string{`PAGE_CONTENT:"<html>\n<body>\"hi\"</body>\n</html>"`})
		content, _ := out.PageContent()
		assert.Equal(t, "<html>\n<body>\"hi\"</body>\n</html>", content)
	})

	t.Run("broken json content is kept raw", func(t *testing.T) {
		out := ParseOutput([]string{`PAGE_CONTENT:"<html>`})
		content, _ := out.PageContent()
		assert.Equal(t, `"<html>`, content)
	})

	t.Run("tags are case sensitive prefixes", func(t *testing.T) {
		out := ParseOutput([]string{"current_url:http://a/", " TIMEOUT:after 1 ms"})
		_, ok := out.CurrentURL()
		assert.False(t, ok)
		assert.Empty(t, out.Timeouts())
		assert.Len(t, out.Diagnostics(), 2)
	})
}

func TestParseTimeout(t *testing.T) {
	cases := []struct {
		body string
		want TimeoutNotice
	}{
		{"selector-x after 5000 ms", TimeoutNotice{Selector: "selector-x", Elapsed: 5 * time.Second}},
		{`#content not found after 250 ms`, TimeoutNotice{Selector: "#content", Elapsed: 250 * time.Millisecond}},
		{` $(div.result a) not found after 10 ms`, TimeoutNotice{Selector: "div.result a", Elapsed: 10 * time.Millisecond}},
		{" not found after 5 ms", TimeoutNotice{Elapsed: 5 * time.Millisecond}},
		{"a b not found after 5 ms", TimeoutNotice{Selector: "a b", Elapsed: 5 * time.Millisecond}},
		{"after waiting 3000 ms", TimeoutNotice{Elapsed: 3 * time.Second}},
		{" after waiting 0 ms", TimeoutNotice{}},
		{"something else", TimeoutNotice{}},
	}

	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			got := parseTimeout(tc.body)
			tc.want.Raw = tc.body
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("parseTimeout(%q) mismatch (-want +got):\n%s", tc.body, diff)
			}
		})
	}
}

func TestTimeoutNotice_String(t *testing.T) {
	assert.Equal(t, "timed out after 1s", TimeoutNotice{Elapsed: time.Second}.String())
	assert.Equal(t, `selector "#a" not found after 1s`, TimeoutNotice{Selector: "#a", Elapsed: time.Second}.String())
}

func TestOutput_Immutable(t *testing.T) {
	lines := []string{"CURRENT_URL:http://a/", "TIMEOUT:after 1 ms", "x"}
	out := ParseOutput(lines)
	lines[0] = "changed"

	assert.Equal(t, "CURRENT_URL:http://a/", out.Lines()[0])

	got := out.Timeouts()
	got[0].Selector = "changed"
	assert.Equal(t, "", out.Timeouts()[0].Selector)

	diag := out.Diagnostics()
	diag[0] = "changed"
	assert.Equal(t, "x", out.Diagnostics()[0])
}

func TestOutput_Document(t *testing.T) {
	out := ParseOutput([]string{
		`PAGE_CONTENT:"<html><head><title> Example </title></head><body><h1>One</h1><h1>Two </h1></body></html>"`,
	})
	assert.Equal(t, "Example", out.Title())

	texts, err := out.Select("h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two"}, texts)

	empty := ParseOutput(nil)
	assert.Equal(t, "", empty.Title())
	_, err = empty.Select("h1")
	assert.Error(t, err)
}
