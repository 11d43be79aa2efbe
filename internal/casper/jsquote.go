// File: internal/casper/jsquote.go
package casper

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// json mirrors encoding/json behavior, which is what we want for emitting
// JavaScript literals: quotes, backslashes, control and HTML characters are escaped.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// lineTerminators are legal inside JSON strings but end a string literal in
// pre-ES2015 JavaScript engines such as PhantomJS.
var lineTerminators = strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`)

// jsString renders s as a double-quoted JavaScript string literal.
// Every caller supplied value that is meant to be a literal in the generated
// script goes through here.
func jsString(s string) string {
	out, err := json.MarshalToString(s)
	if err != nil {
		return `""`
	}
	return lineTerminators.Replace(out)
}

// jsValue renders v as a JavaScript expression. A nil v renders as null.
func jsValue(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	if s, ok := v.(string); ok {
		return jsString(s), nil
	}
	out, err := json.MarshalToString(v)
	if err != nil {
		return "", err
	}
	return lineTerminators.Replace(out), nil
}
