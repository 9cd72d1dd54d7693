package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qgraph/internal/ir"
)

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Engine   string `json:"engine"`
	Document string `json:"document"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("qgraph %s (request document v%s)", v.Engine, v.Document)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the engine version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return f.Success(VersionInfo{Engine: ir.EngineVersion, Document: ir.DocumentVersion})
		},
	}
}
