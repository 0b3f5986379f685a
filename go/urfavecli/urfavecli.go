// Package urfavecli contains helpers for binaries built on github.com/urfave/cli/v2.
package urfavecli

import (
	cli "github.com/urfave/cli/v2"
	"go.skia.org/screendiff/go/sklog"
)

// LogFlags logs the value of every flag of the running command and its parents.
func LogFlags(c *cli.Context) {
	for _, ctx := range c.Lineage() {
		if ctx.Command == nil {
			continue
		}
		for _, f := range ctx.Command.Flags {
			name := f.Names()[0]
			sklog.Infof("Flags: --%s=%v", name, ctx.Value(name))
		}
	}
}

// MissingFlags returns the names that were not set on the command line, so that a command can
// report all of its missing flags at once.
func MissingFlags(c *cli.Context, names ...string) []string {
	var missing []string
	for _, name := range names {
		if !c.IsSet(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
