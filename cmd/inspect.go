package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/models"
	"s3cleanup/pkg/utils"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <bucket>...",
	Short: "Show what a bucket holds without changing it",
	Long: `Print a read-only JSON summary of each named bucket: region, versioning
status, object count, total size, number of top-level folders and the most
recent modification time. Useful before and after a cleanup run.`,
	Example: `  # Inspect one bucket
  s3cleanup inspect my-bucket

  # Inspect several, with debug logging
  s3cleanup inspect alpha beta --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetInt("timeout")
	if timeout <= 0 {
		return errs.New(errs.KindInvalidInput, "timeout must be greater than 0")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	client, err := newClient(ctx)
	if err != nil {
		return errs.AtStep(err, "connect", "")
	}

	infos := make([]*models.BucketInfo, 0, len(args))
	for _, bucket := range args {
		appLog.Debug().Str("bucket", bucket).Msg("getting bucket information")

		info, err := client.Inspect(ctx, bucket)
		if err != nil {
			return errs.AtStep(err, "inspect", bucket)
		}
		infos = append(infos, info)
	}

	return utils.FprintJSON(cmd.OutOrStdout(), infos)
}

func init() {
	inspectCmd.Flags().Int("timeout", 300, "Timeout in seconds for the operation")
}
