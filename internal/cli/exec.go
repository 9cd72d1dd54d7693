package cli

import (
	"github.com/spf13/cobra"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database  string
	Bootstrap bool
	ForceTx   bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <schema> <request>",
		Short: "Execute a request document",
		Long: `Execute a request document against a SQLite database.

The request is a YAML file ("-" reads stdin) with one or more operations.
A single operation prints its response. Several operations run as a batch
and print a list; with "transaction: true" the batch commits or rolls back
as a whole.

Exit codes:
  0 - Request succeeded
  1 - Request failed (the error carries its P-code)
  2 - Command error (invalid paths, database not found, etc.)

Example:
  qgraph exec ./schema.cue ./create-user.yaml --db ./app.db
  echo 'operations: [{op: findManyUser}]' | qgraph exec ./schema.cue - --db ./app.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Bootstrap, "bootstrap", true, "create missing tables before executing")
	cmd.Flags().BoolVar(&opts.ForceTx, "force-tx", false, "run every operation in a transaction")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExec(opts *ExecOptions, schemaPath, requestPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := loadSchema(schemaPath)
	if err != nil {
		_ = formatter.Fail(err)
		return err
	}
	doc, err := loadRequest(requestPath, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeRequest, err.Error(), nil)
		return err
	}

	sess, err := openSession(cmd.Context(), s, sessionConfig{
		dbPath:    opts.Database,
		bootstrap: opts.Bootstrap,
		forceTx:   opts.ForceTx,
		logger:    newLogger(opts.RootOptions, cmd.ErrOrStderr()),
	})
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	defer sess.Close()

	formatter.VerboseLog("executing %d operation(s), transaction=%t", len(doc.Operations), doc.Transaction)
	v, err := sess.engine.ExecuteDocument(cmd.Context(), doc)
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitFailure, "request failed", err)
	}
	return formatter.Success(v)
}
