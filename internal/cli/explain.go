package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/engine"
)

// ExplainResult holds the explanation of every operation of a request.
type ExplainResult struct {
	Transaction bool                  `json:"transaction"`
	Operations  []*engine.Explanation `json:"operations"`
}

func (r ExplainResult) String() string {
	parts := make([]string, len(r.Operations))
	for i, x := range r.Operations {
		parts[i] = strings.TrimRight(x.String(), "\n")
	}
	return strings.Join(parts, "\n\n")
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <schema> <request>",
		Short: "Show the query graph of a request",
		Long: `Build the query graph of every operation of a request document and
print it with its lowered program. Nothing is executed and no database is
needed.

Example:
  qgraph explain ./schema.cue ./create-user.yaml
  qgraph explain ./schema.cue ./create-user.yaml --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, schemaPath, requestPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

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

	qs := builder.NewQuerySchema(s, builder.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	result := ExplainResult{Transaction: doc.Transaction}
	for i, sel := range doc.Operations {
		x, err := engine.Explain(qs, sel)
		if err != nil {
			if ee, ok := engine.AsError(err); ok && len(doc.Operations) > 1 {
				ee.BatchIndex = i
			}
			_ = formatter.Fail(err)
			return WrapExitError(ExitFailure, "invalid request", err)
		}
		result.Operations = append(result.Operations, x)
	}
	return formatter.Success(result)
}
