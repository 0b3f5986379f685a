// refpromote accepts archived screenshots as reference images.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	cli "github.com/urfave/cli/v2"
	"go.skia.org/screendiff/go/now"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/sklog"
	"go.skia.org/screendiff/go/urfavecli"
	"go.skia.org/screendiff/screendiff/go/config"
	"go.skia.org/screendiff/screendiff/go/reference"
)

const (
	configFlag       = "config"
	referenceDirFlag = "reference-dir"
	errorDirFlag     = "error-dir"
	allFlag          = "all"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		sklog.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	dirFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  configFlag,
			Usage: "JSON5 config file to read the directories from.",
		},
		&cli.StringFlag{
			Name:  referenceDirFlag,
			Usage: "Directory of reference screenshots. Overrides the config.",
		},
		&cli.StringFlag{
			Name:  errorDirFlag,
			Usage: "Directory of archived screenshots. Overrides the config.",
		},
	}
	return &cli.App{
		Name:      "refpromote",
		Usage:     "Accept archived screenshots as reference images.",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived screenshots and why they were archived.",
				Flags: dirFlags,
				Action: func(c *cli.Context) error {
					urfavecli.LogFlags(c)
					_, reporter, err := dirs(c)
					if err != nil {
						return err
					}
					return list(c.App.Writer, reporter, now.Now(c.Context))
				},
			},
			{
				Name:      "promote",
				Usage:     "Copy archived screenshots into the reference directory as new variants.",
				ArgsUsage: "name ...",
				Flags: append(dirFlags, &cli.BoolFlag{
					Name:  allFlag,
					Usage: "Promote every archived screenshot.",
				}),
				Action: func(c *cli.Context) error {
					urfavecli.LogFlags(c)
					store, reporter, err := dirs(c)
					if err != nil {
						return err
					}
					names := c.Args().Slice()
					if c.Bool(allFlag) {
						if names, err = reference.Archived(reporter); err != nil {
							return err
						}
					}
					if len(names) == 0 {
						return skerr.Fmt("nothing to promote: pass reference names or --%s", allFlag)
					}
					for _, name := range names {
						dst, err := reference.Promote(reporter, store, name)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "%s -> %s\n", name, dst)
					}
					return nil
				},
			},
		},
	}
}

// dirs returns the reference store and reporter from the config file and flag overrides.
func dirs(c *cli.Context) (*reference.Store, *reference.Reporter, error) {
	cfg := config.Default()
	if p := c.String(configFlag); p != "" {
		loaded, err := config.Load(p)
		if err != nil {
			return nil, nil, skerr.Wrap(err)
		}
		cfg = *loaded
	}
	if c.IsSet(referenceDirFlag) {
		cfg.ReferenceDir = c.String(referenceDirFlag)
	}
	if c.IsSet(errorDirFlag) {
		cfg.ErrorDir = c.String(errorDirFlag)
	}
	if missing := urfavecli.MissingFlags(c, referenceDirFlag, errorDirFlag); cfg.ReferenceDir == "" || cfg.ErrorDir == "" {
		return nil, nil, skerr.Fmt("set --%s or %v", configFlag, missing)
	}
	store, err := reference.NewStore(cfg.ReferenceDir, cfg.CacheSize)
	if err != nil {
		return nil, nil, skerr.Wrap(err)
	}
	return store, reference.NewReporter(cfg.ErrorDir), nil
}

func list(w io.Writer, reporter *reference.Reporter, ts time.Time) error {
	names, err := reference.Archived(reporter)
	if err != nil {
		return skerr.Wrap(err)
	}
	for _, name := range names {
		rep, err := reporter.ReadReport(name)
		if err != nil {
			sklog.Warningf("No report for %s: %s", name, err)
			fmt.Fprintf(w, "%s\n", name)
			continue
		}
		age := humanize.RelTime(rep.Timestamp, ts, "ago", "from now")
		switch {
		case rep.Missing:
			fmt.Fprintf(w, "%s: no reference (archived %s)\n", name, age)
		case rep.SizesDiffer:
			fmt.Fprintf(w, "%s: size %dx%d, reference %dx%d, %d blocks differ (archived %s)\n", name, rep.CandidateSize.X, rep.CandidateSize.Y, rep.ReferenceSize.X, rep.ReferenceSize.Y, len(rep.FailingBlocks), age)
		default:
			fmt.Fprintf(w, "%s: %d blocks differ (archived %s)\n", name, len(rep.FailingBlocks), age)
		}
	}
	return nil
}
