package cmd

import (
	"github.com/spf13/cobra"

	"s3cleanup/internal/version"
	"s3cleanup/pkg/utils"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return utils.FprintJSON(cmd.OutOrStdout(), version.Get())
	},
}
