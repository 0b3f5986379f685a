// Package config contains types shared by the JSON5 configuration files of the screendiff tools.
package config

import (
	"time"
)

// Duration is a simple struct wrapper to allow us to parse strings as durations from the
// incoming config file (e.g. "retry_delay": "500ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
