// Package config loads the JSON5 configuration shared by the screendiff tools.
package config

import (
	"io"
	"reflect"

	"github.com/flynn/json5"
	"go.skia.org/screendiff/go/config"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/util"
	"go.skia.org/screendiff/screendiff/go/block"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
	"go.skia.org/screendiff/screendiff/go/reference"
	"go.skia.org/screendiff/screendiff/go/screenshot"
)

// Duration allows durations to be written as strings, e.g. "500ms".
type Duration = config.Duration

// Config is the configuration of a screenshot verification run.
type Config struct {
	// ReferenceDir holds the accepted reference screenshots.
	ReferenceDir string `json:"reference_dir"`

	// ErrorDir receives screenshots that failed verification.
	ErrorDir string `json:"error_dir"`

	// Tolerance is the maximum normalized RGB difference of a block, in [0, 1].
	Tolerance float64 `json:"tolerance" optional:"true"`

	// Retries is the number of extra attempts after a mismatch.
	Retries int `json:"retries" optional:"true"`

	// RetryDelay is the pause between attempts.
	RetryDelay Duration `json:"retry_delay" optional:"true"`

	// DevicePixelRatio is the number of physical pixels per logical pixel in captured
	// screenshots. References are stored in logical pixels.
	DevicePixelRatio float64 `json:"device_pixel_ratio" optional:"true"`

	// Parallelism limits how many browsers are verified at once. 0 means no limit.
	Parallelism int `json:"parallelism" optional:"true"`

	// CacheSize is the number of decoded reference images kept in memory.
	CacheSize int `json:"cache_size" optional:"true"`

	// Cursor overrides the cursor-blink filter thresholds. Fields left out keep their defaults;
	// an explicit 0 is kept as 0.
	Cursor imgcmp.CursorConfig `json:"cursor" optional:"true"`

	// DisableCursorFilter turns off the cursor-blink filter.
	DisableCursorFilter bool `json:"disable_cursor_filter"`
}

// Default returns a Config with every optional field set to its default.
func Default() Config {
	return Config{
		Tolerance:        imgcmp.DefaultTolerance,
		Retries:          screenshot.DefaultRetries,
		RetryDelay:       Duration{Duration: screenshot.DefaultDelay},
		DevicePixelRatio: 1,
		CacheSize:        reference.DefaultCacheSize,
		Cursor:           imgcmp.DefaultCursorConfig(),
	}
}

// Load reads the config at path on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := LoadFromJSON5(&cfg, path); err != nil {
		return nil, skerr.Wrap(err)
	}
	if _, err := cfg.Options(); err != nil {
		return nil, skerr.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

// LoadFromJSON5 decodes the JSON5 file at path into dst, which must be a pointer to a struct,
// and checks that every field not tagged `optional:"true"` is set. Bool fields are always
// optional.
func LoadFromJSON5(dst interface{}, path string) error {
	rType := reflect.TypeOf(dst)
	if rType == nil || rType.Kind() != reflect.Ptr || rType.Elem().Kind() != reflect.Struct {
		return skerr.Fmt("Input must be a pointer to a struct, got %T", dst)
	}
	err := util.WithReadFile(path, func(r io.Reader) error {
		return json5.NewDecoder(r).Decode(dst)
	})
	if err != nil {
		return skerr.Wrapf(err, "reading config at %s", path)
	}
	return checkRequired(reflect.Indirect(reflect.ValueOf(dst)))
}

// checkRequired returns an error if any required field of the struct in rValue, or of nested
// required structs, has its zero value.
func checkRequired(rValue reflect.Value) error {
	rType := rValue.Type()
	for i := 0; i < rValue.NumField(); i++ {
		field := rType.Field(i)
		if field.Tag.Get("json") == "" || field.Tag.Get("optional") == "true" {
			continue
		}
		if field.Type.Kind() == reflect.Bool {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := checkRequired(rValue.Field(i)); err != nil {
				return err
			}
			continue
		}
		if rValue.Field(i).IsZero() {
			return skerr.Fmt("Required %s to be non-zero", field.Name)
		}
	}
	return nil
}

// Options returns the comparison options described by the config.
func (c *Config) Options() (imgcmp.Options, error) {
	if c.DevicePixelRatio <= 0 {
		return imgcmp.Options{}, skerr.Fmt("device_pixel_ratio must be positive, was %g", c.DevicePixelRatio)
	}
	opts := imgcmp.Options{
		Tolerance:       c.Tolerance,
		CandidatePolicy: block.PolicyForRatio(c.DevicePixelRatio),
	}
	if !c.DisableCursorFilter {
		cursor := c.Cursor
		opts.Cursor = &cursor
	}
	if err := opts.Validate(); err != nil {
		return imgcmp.Options{}, skerr.Wrap(err)
	}
	return opts, nil
}

// NewVerifier returns a reference verifier for the configured directories and options.
func (c *Config) NewVerifier() (*reference.Verifier, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	store, err := reference.NewStore(c.ReferenceDir, c.CacheSize)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return reference.NewVerifier(store, reference.NewReporter(c.ErrorDir), opts), nil
}

// NewAsserter returns an Asserter with the configured retry policy.
func (c *Config) NewAsserter() (*screenshot.Asserter, error) {
	v, err := c.NewVerifier()
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return &screenshot.Asserter{
		Verifier: v,
		Retries:  c.Retries,
		Delay:    c.RetryDelay.Duration,
	}, nil
}
