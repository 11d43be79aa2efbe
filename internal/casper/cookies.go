// File: internal/casper/cookies.go
package casper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Cookie is a single PhantomJS cookie record (name, value, domain, path,
// httponly, secure, expires, ...). It is passed through to the engine as is.
type Cookie map[string]any

// DecodeCookies reads a JSON array of cookie records from path.
// A leading ~ is expanded to the user's home directory. Invalid JSON is
// reported as a *DataError.
func DecodeCookies(path string) ([]Cookie, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand cookie path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, &DataError{Path: expanded, Err: err}
	}
	return cookies, nil
}

// SetCookies replaces the engine's cookie jar with cookies.
// An empty slice leaves the script untouched.
func (d *Driver) SetCookies(cookies []Cookie) *Driver {
	if len(cookies) == 0 {
		d.logger.Debug("No cookies given, leaving cookie jar untouched.")
		return d
	}

	encoded, err := jsValue(cookies)
	if err != nil {
		d.logger.Error("Failed to encode cookies, skipping.", zap.Error(err))
		return d
	}
	d.script.append("\nphantom.cookies = " + encoded + ";\n")
	return d
}

// LoadCookies reads cookies from a JSON file and passes them to SetCookies.
// A missing or unreadable file, invalid JSON and an empty array are all
// no-ops; nothing is returned to the caller.
func (d *Driver) LoadCookies(path string) *Driver {
	cookies, err := DecodeCookies(path)

	var dataErr *DataError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.logger.Debug("Cookie file does not exist, skipping.", zap.String("path", path))
		return d
	case errors.As(err, &dataErr):
		d.logger.Debug("Cookie file is not valid JSON, skipping.", zap.String("path", path), zap.Error(err))
		return d
	case err != nil:
		d.logger.Debug("Cookie file could not be read, skipping.", zap.String("path", path), zap.Error(err))
		return d
	case len(cookies) == 0:
		d.logger.Debug("Cookie file is empty, skipping.", zap.String("path", path))
		return d
	}

	return d.SetCookies(cookies)
}

// SaveCookies adds a step that writes the engine's live cookie jar to path.
// The file is written by the engine, and only if the step is reached.
func (d *Driver) SaveCookies(path string) *Driver {
	d.script.append(`
casper.then(function() {
    var fs = require('fs');
    var cookies = JSON.stringify(phantom.cookies);
    fs.write(` + jsString(path) + `, cookies, 644);
});
`)
	return d
}
