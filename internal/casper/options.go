// File: internal/casper/options.go
package casper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Options collects the command-line flags handed to the casperjs binary,
// e.g. --proxy, --ignore-ssl-errors or --cookies-file.
// Keys are unique; the last AddOption for a name wins.
type Options struct {
	values map[string]string
}

// NewOptions returns an empty option collection.
func NewOptions() *Options {
	return &Options{values: make(map[string]string)}
}

// AddOption inserts or overwrites the flag name. Supported values are strings,
// booleans, integers, floats, string slices (comma joined) and fmt.Stringers.
// Anything else is formatted with %v.
func (o *Options) AddOption(name string, value any) {
	if o.values == nil {
		o.values = make(map[string]string)
	}
	o.values[strings.TrimLeft(name, "-")] = formatOptionValue(value)
}

// Get returns the serialized value of a flag, if set.
func (o *Options) Get(name string) (string, bool) {
	v, ok := o.values[strings.TrimLeft(name, "-")]
	return v, ok
}

// Len reports the number of flags in the collection.
func (o *Options) Len() int { return len(o.values) }

// Args returns the flags as unquoted "--name=value" tokens, sorted by name.
// This is what the process runner passes to exec; no shell is involved.
func (o *Options) Args() []string {
	names := make([]string, 0, len(o.values))
	for name := range o.values {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		args = append(args, "--"+name+"="+o.values[name])
	}
	return args
}

// Build renders the flags as a single shell-safe argument string.
// An empty collection yields "".
func (o *Options) Build() string {
	if len(o.values) == 0 {
		return ""
	}
	return shellquote.Join(o.Args()...)
}

func formatOptionValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, ",")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
