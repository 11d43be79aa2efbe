// File: internal/casper/script.go
package casper

import "strings"

// Tags prefixed to the lines the generated script prints for the parent
// process. They must match byte for byte what ParseOutput looks for.
const (
	TagCurrentURL  = "CURRENT_URL:"
	TagPageContent = "PAGE_CONTENT:"
	TagTimeout     = "TIMEOUT:"
)

// preamble creates the casper instance. Debug logging goes to stdout along
// with the tagged lines; the parser keeps it as diagnostics.
const preamble = `
var casper = require('casper').create({
  verbose: true,
  logLevel: 'debug',
  colorizerType: 'Dummy'
});
`

// closing emits the final URL and HTML, then starts the step queue.
// The HTML is JSON encoded so that the page stays on a single output line.
const closing = `
casper.then(function() {
    this.echo('` + TagCurrentURL + `' + this.getCurrentUrl());
    this.echo('` + TagPageContent + `' + JSON.stringify(this.getHTML()));
});
casper.run();
`

// Script is an append-only list of rendered CasperJS fragments.
// Fragments are emitted in the order they were appended.
type Script struct {
	fragments []string
}

func newScript() *Script {
	return &Script{fragments: []string{preamble}}
}

func (s *Script) append(fragment string) {
	s.fragments = append(s.fragments, fragment)
}

// Fragments returns a copy of the fragment list, preamble first.
func (s *Script) Fragments() []string {
	out := make([]string, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// String joins the fragments without the closing fragment.
func (s *Script) String() string {
	return strings.Join(s.fragments, "")
}

// Finalized returns the script text with the closing fragment appended.
// The receiver is left untouched so that a driver can be run more than once.
func (s *Script) Finalized() string {
	return s.String() + closing
}
