package main

import (
	"fmt"
	"image/png"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.skia.org/screendiff/go/skerr"
	"go.skia.org/screendiff/go/util"
	"go.skia.org/screendiff/screendiff/go/block"
	"go.skia.org/screendiff/screendiff/go/imgcmp"
	"go.skia.org/screendiff/screendiff/go/reference"
	"go.skia.org/screendiff/screendiff/go/screenshot"
)

// compareEnv provides the environment for the compare command.
type compareEnv struct {
	referenceFile    string
	candidateFile    string
	tolerance        float64
	devicePixelRatio float64
	noCursorFilter   bool
	diffOut          string
}

// getCompareCmd returns the definition of the compare command.
func getCompareCmd() *cobra.Command {
	env := &compareEnv{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two PNG files",
		Long: `
Compares a candidate screenshot against a reference image and prints the blocks that differ.

Exits with a non-zero status if the images are not equal.
`,
		Args: cobra.NoArgs,
		RunE: env.runCompareCmd,
	}
	cmd.Flags().StringVar(&env.referenceFile, "reference", "", "Path to the reference PNG")
	cmd.Flags().StringVar(&env.candidateFile, "candidate", "", "Path to the candidate PNG")
	cmd.Flags().Float64Var(&env.tolerance, "tolerance", imgcmp.DefaultTolerance, "Maximum normalized RGB difference per block")
	cmd.Flags().Float64Var(&env.devicePixelRatio, "device-pixel-ratio", 1, "Physical pixels per logical pixel in the candidate")
	cmd.Flags().BoolVar(&env.noCursorFilter, "no-cursor-filter", false, "Don't ignore a blinking text cursor")
	cmd.Flags().StringVar(&env.diffOut, "diff-out", "", "If set, write the candidate with failing blocks outlined to this PNG")
	must(cmd.MarkFlagRequired("reference"))
	must(cmd.MarkFlagRequired("candidate"))
	return cmd
}

func (c *compareEnv) runCompareCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ref, err := screenshot.FileCapturer{Path: c.referenceFile}.Capture(ctx)
	if err != nil {
		return skerr.Wrap(err)
	}
	cand, err := screenshot.FileCapturer{Path: c.candidateFile}.Capture(ctx)
	if err != nil {
		return skerr.Wrap(err)
	}
	opts := imgcmp.Options{Tolerance: c.tolerance}
	if !c.noCursorFilter {
		cursor := imgcmp.DefaultCursorConfig()
		opts.Cursor = &cursor
	}
	logicalCand := block.PolicyForRatio(c.devicePixelRatio).Logical(cand)
	res, err := imgcmp.Compare(ref, logicalCand, opts)
	if err != nil {
		return skerr.Wrap(err)
	}

	out := cmd.OutOrStdout()
	printResult(out, res)
	if c.diffOut != "" && !res.BlocksEqual {
		err := util.WithWriteFile(c.diffOut, func(w io.Writer) error {
			return png.Encode(w, reference.DiffOverlay(logicalCand, res))
		})
		if err != nil {
			return skerr.Wrapf(err, "writing %s", c.diffOut)
		}
	}
	if !res.Equal() {
		return skerr.Fmt("images differ")
	}
	return nil
}

var (
	pass = color.New(color.FgGreen)
	fail = color.New(color.FgRed, color.Bold)
)

func printResult(w io.Writer, res *imgcmp.Result) {
	if res.SizesDiffer {
		fail.Fprintf(w, "Sizes differ: reference %dx%d, candidate %dx%d\n", res.ReferenceSize.X, res.ReferenceSize.Y, res.CandidateSize.X, res.CandidateSize.Y)
	}
	switch {
	case res.CursorForgiven:
		pass.Fprintf(w, "Equal, ignoring a text cursor in %d blocks\n", res.Diff.Count())
	case res.BlocksEqual:
		pass.Fprintln(w, "Equal")
	default:
		fail.Fprintf(w, "%d of %d blocks differ:\n", res.Diff.Count(), res.Diff.Cols*res.Diff.Rows)
		fmt.Fprint(w, res.Diff)
	}
}
