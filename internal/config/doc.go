// Package config loads and validates the tracklane server configuration
// from a YAML file. Missing fields are filled with defaults before
// validation, so an empty file is a valid configuration.
//
// Watch re-loads the file on change (fsnotify) and hands the new Config to
// a callback; a reload that fails to parse or validate keeps the previous
// configuration active.
package config
