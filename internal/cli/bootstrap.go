package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qgraph/internal/connector/sqlite"
)

// BootstrapOptions holds flags for the bootstrap command.
type BootstrapOptions struct {
	*RootOptions
	Database string
	DryRun   bool
}

// BootstrapResult reports the statements run (or that would run).
type BootstrapResult struct {
	Database   string   `json:"database,omitempty"`
	Statements []string `json:"statements"`
}

func (r BootstrapResult) String() string {
	if r.Database == "" {
		return strings.Join(r.Statements, ";\n") + ";"
	}
	return "Bootstrapped " + r.Database
}

// NewBootstrapCommand creates the bootstrap command.
func NewBootstrapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BootstrapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bootstrap <schema>",
		Short: "Create the tables of a schema",
		Long: `Create one table per model and one join table per many-to-many
relation. Existing tables are left alone; nothing is migrated.

With --dry-run the CREATE TABLE statements are printed instead.

Example:
  qgraph bootstrap ./schema.cue --db ./app.db
  qgraph bootstrap ./schema.cue --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print statements without running them")

	return cmd
}

func runBootstrap(opts *BootstrapOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" && !opts.DryRun {
		return NewExitError(ExitCommandError, "either --db or --dry-run is required")
	}

	s, err := loadSchema(path)
	if err != nil {
		_ = formatter.Fail(err)
		return err
	}
	stmts, err := sqlite.BootstrapSQL(s)
	if err != nil {
		err = WrapExitError(ExitFailure, "failed to generate tables", err)
		_ = formatter.Fail(err)
		return err
	}
	if opts.DryRun {
		return formatter.Success(BootstrapResult{Statements: stmts})
	}

	sess, err := openSession(cmd.Context(), s, sessionConfig{
		dbPath:    opts.Database,
		bootstrap: true,
		logger:    newLogger(opts.RootOptions, cmd.ErrOrStderr()),
	})
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	defer sess.Close()

	formatter.VerboseLog("ran %d statement(s)", len(stmts))
	return formatter.Success(BootstrapResult{Database: opts.Database, Statements: stmts})
}
