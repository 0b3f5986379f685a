package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.skia.org/screendiff/screendiff/go/reference"
)

// nameEnv provides the environment for the name command.
type nameEnv struct {
	desc reference.Descriptor
}

// getNameCmd returns the definition of the name command.
func getNameCmd() *cobra.Command {
	env := &nameEnv{}
	cmd := &cobra.Command{
		Use:   "name",
		Short: "Print the reference file name for a screenshot",
		Args:  cobra.NoArgs,
		RunE:  env.runNameCmd,
	}
	addDescriptorFlags(cmd, &env.desc)
	return cmd
}

func (n *nameEnv) runNameCmd(cmd *cobra.Command, _ []string) error {
	if err := n.desc.Validate(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), n.desc.FileName())
	return err
}

// addDescriptorFlags adds the flags that identify a reference.
func addDescriptorFlags(cmd *cobra.Command, desc *reference.Descriptor) {
	cmd.Flags().StringVar(&desc.ID, "id", "", "Screenshot id, e.g. 'login'")
	cmd.Flags().StringVar(&desc.Browser, "browser", "", "Browser name, e.g. 'chrome'")
	cmd.Flags().StringVar(&desc.Platform, "platform", "", "Platform, e.g. 'linux'")
	cmd.Flags().StringVar(&desc.Version, "version", "", "Full browser version, e.g. '114.0.5735.90'")
	must(cmd.MarkFlagRequired("id"))
	must(cmd.MarkFlagRequired("browser"))
}
