package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/session"
)

var attachCmd = &cobra.Command{
	Use:     "attach [name]",
	Aliases: []string{"reattach"},
	Short:   "Attach to the persistent cleanup session",
	Long: `Connect this terminal to the tmux session a cleanup run lives in. The
session name defaults to SESSION_NAME (or --session).`,
	Example: `  s3cleanup attach
  s3cleanup attach nightly-cleanup`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
	name := cfg.SessionName
	if len(args) == 1 {
		name = args[0]
	}

	tm := session.NewTmux(name, false)
	if err := tm.Check(); err != nil {
		return err
	}
	if !tm.HasSession(cmd.Context()) {
		return errs.New(errs.KindNotFound, fmt.Sprintf("no session named %q", name))
	}
	return tm.Attach(cmd.Context())
}
