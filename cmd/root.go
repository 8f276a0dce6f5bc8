package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"s3cleanup/config"
	"s3cleanup/internal/cleanup"
	"s3cleanup/internal/errs"
	"s3cleanup/internal/logger"
	"s3cleanup/internal/prompt"
	"s3cleanup/internal/session"
	"s3cleanup/internal/trap"
	"s3cleanup/pkg/utils"
)

var (
	cfg      *config.Config
	appLog   = logger.Nop()
	boundary = trap.New("s3cleanup", os.Stderr)
)

var (
	childFlag     = strings.TrimPrefix(session.ChildFlag, "--")
	stdinFileFlag = strings.TrimPrefix(session.StdinFileFlag, "--")
)

var rootCmd = &cobra.Command{
	Use:   "s3cleanup",
	Short: "Interactively delete object-storage buckets",
	Long: `s3cleanup deletes buckets one confirmation at a time.

Bucket names are read from standard input, one per line, until a blank line
or end of input. For each bucket it asks before deleting every top-level
folder, all root objects, all versions, all delete markers and finally the
bucket itself.

The run is relaunched inside a tmux session so it survives a dropped
connection; reattach with "s3cleanup attach". On any failure the step, the
bucket and the exit code are printed and the session is left open for
inspection.

Configuration is loaded from .env file or environment variables`,
	Example: `  # Interactive run
  s3cleanup

  # Piped bucket names and answers, without tmux
  printf 'alpha\nbeta\n\ny\ny\ny\ny\n' | s3cleanup --no-session

  # Stop the run if a bucket does not exist, print a JSON report
  s3cleanup --missing-bucket fail --report`,
	Args:              cobra.NoArgs,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runCleanup,
}

// Execute runs the command tree inside the error boundary and returns the
// process exit code.
func Execute(load func() (*config.Config, error)) int {
	return boundary.Run(context.Background(), func(ctx context.Context) error {
		c, err := load()
		if err != nil {
			return err
		}
		cfg = c
		return rootCmd.ExecuteContext(ctx)
	})
}

func init() {
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("session", "", "Persistent session name (overrides SESSION_NAME)")

	rootCmd.Flags().String("missing-bucket", "", "What a missing bucket means: skip or fail (overrides MISSING_BUCKET)")
	rootCmd.Flags().Int("preview", 0, "Root object keys shown before confirming (overrides PREVIEW_COUNT)")
	rootCmd.Flags().Bool("no-session", false, "Run in place without a persistent session")
	rootCmd.Flags().Bool("report", false, "Print a JSON run report when done")

	rootCmd.Flags().Bool(childFlag, false, "")
	rootCmd.Flags().String(stdinFileFlag, "", "")
	_ = rootCmd.Flags().MarkHidden(childFlag)
	_ = rootCmd.Flags().MarkHidden(stdinFileFlag)

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errs.Wrap(errs.KindInvalidInput, "invalid flags", err)
	})
}

func setup(cmd *cobra.Command, args []string) error {
	if err := applyFlags(cmd); err != nil {
		return err
	}
	appLog = logger.New(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	boundary.SetLogger(appLog)
	return nil
}

// applyFlags lets flags override the loaded configuration.
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("session") {
		cfg.SessionName, _ = flags.GetString("session")
	}
	if flags.Changed("missing-bucket") {
		policy, _ := flags.GetString("missing-bucket")
		cfg.MissingBucket = strings.ToLower(policy)
	}
	if flags.Changed("preview") {
		cfg.PreviewCount, _ = flags.GetInt("preview")
		cfg.Override("PREVIEW_COUNT")
	}
	if noSession, _ := flags.GetBool("no-session"); noSession {
		cfg.NoSession = true
		cfg.Override("NO_SESSION")
	}
	return validate(cmd)
}

// validate checks only the configuration cmd actually uses.
func validate(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "version", "help", "completion":
		return nil
	case "attach":
		return cfg.ValidateSession()
	case "inspect":
		return cfg.ValidateProvider()
	}
	return cfg.Validate()
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	child, _ := cmd.Flags().GetBool(childFlag)
	stdinFile, _ := cmd.Flags().GetString(stdinFileFlag)

	var sess cleanup.Session
	if !cfg.NoSession {
		tm := session.NewTmux(cfg.SessionName, child, session.WithStdin(os.Stdin, utils.IsTerminal(os.Stdin)))
		if err := tm.Check(); err != nil {
			return errs.AtStep(err, "check-tooling", "")
		}
		boundary.SetReattacher(tm)
		sess = tm
	}

	in, err := openInput(cmd, stdinFile)
	if err != nil {
		return errs.AtStep(err, "open-input", "")
	}
	defer in.Close()

	client, err := newClient(ctx)
	if err != nil {
		return errs.AtStep(err, "connect", "")
	}

	prompter := prompt.New(in, out)
	machine := cleanup.NewMachine(client, prompter, out, appLog, utils.NewProgress(out), cleanup.Options{
		PreviewCount:  cfg.PreviewCount,
		MissingBucket: missingBucketPolicy(cfg.MissingBucket),
	})
	runner := cleanup.NewRunner(machine, prompter, sess, out, appLog, cleanup.RunnerConfig{
		SessionName: cfg.SessionName,
		Provider:    cfg.Provider,
		Argv:        relaunchArgv(),
	})

	report, err := runner.Run(ctx)
	if wantReport, _ := cmd.Flags().GetBool("report"); wantReport && report != nil && !report.Relaunched {
		if perr := utils.FprintJSON(out, report); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// openInput returns the operator's input: the spooled file handed over by a
// relaunch, or the command's stdin. The spool file is removed once open.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "failed to open spooled input", err)
	}
	if err := os.Remove(path); err != nil {
		appLog.Warn().Err(err).Str("path", path).Msg("could not remove spooled input")
	}
	return f, nil
}

func missingBucketPolicy(value string) cleanup.MissingBucketPolicy {
	if value == config.MissingBucketFail {
		return cleanup.FailMissing
	}
	return cleanup.SkipMissing
}

func relaunchArgv() []string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return append([]string{exe}, os.Args[1:]...)
}
