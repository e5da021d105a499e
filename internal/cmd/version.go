package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sessionbridge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	RunE: runVersion,
}

var versionOutput string

func init() {
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "", "output format: json, yaml (default short text)")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.GetInfo()

	if versionOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		return nil
	}

	encode, err := newEncoder(versionOutput, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return encode(info)
}
