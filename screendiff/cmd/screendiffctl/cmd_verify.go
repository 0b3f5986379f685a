package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/sklog"
	"go.skia.org/screendiff/screendiff/go/config"
	"go.skia.org/screendiff/screendiff/go/reference"
	"go.skia.org/screendiff/screendiff/go/screenshot"
)

// verifyEnv provides the environment for the verify command.
type verifyEnv struct {
	configFile string
	id         string
}

// getVerifyCmd returns the definition of the verify command.
func getVerifyCmd() *cobra.Command {
	env := &verifyEnv{}
	cmd := &cobra.Command{
		Use:   "verify [flags] browser[/platform[/version]]=screenshot.png ...",
		Short: "Verify screenshots against the reference directory",
		Long: `
Verifies one screenshot per browser against the references in the configured reference
directory, archiving failures to the error directory. Browsers are verified in parallel.

Example:

  screendiffctl verify --config screendiff.json5 --id login \
    chrome/linux/114.0.5735.90=login-chrome.png firefox=login-firefox.png
`,
		Args: cobra.MinimumNArgs(1),
		RunE: env.runVerifyCmd,
	}
	cmd.Flags().StringVar(&env.configFile, "config", "", "Path to the JSON5 config file")
	cmd.Flags().StringVar(&env.id, "id", "", "Screenshot id, e.g. 'login'")
	must(cmd.MarkFlagRequired("config"))
	must(cmd.MarkFlagRequired("id"))
	return cmd
}

// target is a screenshot file and the browser it was taken in.
type target struct {
	desc reference.Descriptor
	path string
}

// parseTarget parses "browser[/platform[/version]]=path".
func parseTarget(id, arg string) (target, error) {
	env, path, ok := strings.Cut(arg, "=")
	if !ok || env == "" || path == "" {
		return target{}, skerr.Fmt("expected browser[/platform[/version]]=path, got %q", arg)
	}
	parts := strings.SplitN(env, "/", 3)
	t := target{
		desc: reference.Descriptor{ID: id, Browser: parts[0]},
		path: path,
	}
	if len(parts) > 1 {
		t.desc.Platform = parts[1]
	}
	if len(parts) > 2 {
		t.desc.Version = parts[2]
	}
	if err := t.desc.Validate(); err != nil {
		return target{}, skerr.Wrap(err)
	}
	return t, nil
}

func (v *verifyEnv) runVerifyCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v.configFile)
	if err != nil {
		return skerr.Wrap(err)
	}
	asserter, err := cfg.NewAsserter()
	if err != nil {
		return skerr.Wrap(err)
	}
	var jobs []screenshot.Job
	for _, arg := range args {
		t, err := parseTarget(v.id, arg)
		if err != nil {
			return skerr.Wrap(err)
		}
		jobs = append(jobs, screenshot.VerifyJob(asserter, screenshot.FileCapturer{Path: t.path}, t.desc))
	}
	return v.run(cmd.Context(), cmd, cfg.Parallelism, jobs)
}

func (v *verifyEnv) run(ctx context.Context, cmd *cobra.Command, parallelism int, jobs []screenshot.Job) error {
	sklog.Infof("Verifying %d screenshots of %s", len(jobs), v.id)
	if err := screenshot.RunParallel(ctx, parallelism, jobs); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "All %d screenshots of %s match\n", len(jobs), v.id)
	return err
}
