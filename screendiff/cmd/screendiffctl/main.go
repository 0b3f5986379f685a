// screendiffctl compares screenshots against reference images from the command line.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.skia.org/screendiff/go/sklog"
	"go.skia.org/screendiff/go/sklog/stdlogging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		sklog.Flush()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose, noColor bool
	cmd := &cobra.Command{
		Use:   "screendiffctl",
		Short: "Compare screenshots against reference images",
		Long: `
screendiffctl compares screenshots block by block against the reference images of a UI test
suite, the same way the tests themselves do.
`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			sklog.SetLogger(stdlogging.New(os.Stderr, verbose))
			if noColor {
				color.NoColor = true
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Don't color the output")
	cmd.AddCommand(getNameCmd(), getCompareCmd(), getVerifyCmd())
	return cmd
}

// must panics on errors that indicate a programming error, such as marking an unknown flag as
// required.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
