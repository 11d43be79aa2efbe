// File: internal/casper/headers.go
package casper

import (
	"sort"
	"strings"
)

// Headers maps a header name to one or more values. Multiple values are
// joined with commas when the header object is rendered.
type Headers map[string][]string

// suppressedHeader is never sent: the engine cannot decode compressed bodies,
// so advertising gzip/br would leave us with binary page content.
const suppressedHeader = "Accept-Encoding"

// SetHeaders replaces the page's custom header object. An empty map still
// emits an (empty) object, clearing any previously set headers.
func (d *Driver) SetHeaders(headers Headers) *Driver {
	names := make([]string, 0, len(headers))
	for name := range headers {
		if strings.EqualFold(name, suppressedHeader) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\ncasper.page.customHeaders = {\n")
	for i, name := range names {
		b.WriteString("    ")
		b.WriteString(jsString(name))
		b.WriteString(": ")
		b.WriteString(jsString(strings.Join(headers[name], ",")))
		if i < len(names)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("};\n")

	d.script.append(b.String())
	return d
}

// SetAcceptLanguage sets a single Accept-Language header, e.g. "en-GB", "en".
func (d *Driver) SetAcceptLanguage(languages ...string) *Driver {
	return d.SetHeaders(Headers{"Accept-Language": languages})
}
