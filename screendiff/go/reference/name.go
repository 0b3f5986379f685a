// Package reference resolves reference screenshots on disk, verifies captured screenshots
// against them and archives the failures for a human to inspect or promote.
package reference

import (
	"fmt"
	"strings"

	"go.skia.org/screendiff/go/skerr"
)

// Unknown stands in for a missing platform or browser version in reference names.
const Unknown = "unknown"

// Descriptor identifies the reference screenshots for one test in one browser environment.
type Descriptor struct {
	// ID names the screenshot within the test suite, e.g. "login".
	ID string `json:"id"`
	// Browser is the WebDriver browser name, e.g. "chrome".
	Browser string `json:"browser"`
	// Platform is the operating system, if known.
	Platform string `json:"platform,omitempty"`
	// Version is the full browser version, if known, e.g. "114.0.5735.90".
	Version string `json:"version,omitempty"`
}

// Validate returns an error if the descriptor can't be turned into a file name.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return skerr.Fmt("reference id must not be empty")
	}
	if d.Browser == "" {
		return skerr.Fmt("browser name must not be empty for %q", d.ID)
	}
	for _, s := range []string{d.ID, d.Browser, d.Platform, d.Version} {
		if strings.ContainsAny(s, `/\`) {
			return skerr.Fmt("%q must not contain path separators", s)
		}
	}
	return nil
}

// FileName returns the base name, without extension, of the reference files for d, e.g.
// "login_unknown_chrome_114".
func (d Descriptor) FileName() string {
	platform := strings.ToLower(d.Platform)
	if platform == "" {
		platform = Unknown
	}
	return fmt.Sprintf("%s_%s_%s_%s", d.ID, platform, d.Browser, MajorVersion(d.Version))
}

// MajorVersion returns the major component of a browser version: "114.0.5735.90" is "114" and
// "17.0-beta" is "17". An empty version is Unknown.
func MajorVersion(version string) string {
	if i := strings.Index(version, "-"); i >= 0 {
		version = version[:i]
	}
	if i := strings.Index(version, "."); i >= 0 {
		version = version[:i]
	}
	if version == "" {
		return Unknown
	}
	return version
}
