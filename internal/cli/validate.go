package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/schema"
)

// SchemaSummary describes a compiled schema.
type SchemaSummary struct {
	Fingerprint string         `json:"fingerprint,omitempty"`
	Models      []ModelSummary `json:"models"`
	Operations  []string       `json:"operations,omitempty"`
}

// ModelSummary describes one model of a schema.
type ModelSummary struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Fields     int      `json:"fields"`
	Relations  []string `json:"relations,omitempty"`
	PrimaryKey []string `json:"primary_key"`
}

func (s SchemaSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema valid: %d model(s), %d operation(s)\n", len(s.Models), len(s.Operations))
	for _, m := range s.Models {
		fmt.Fprintf(&b, "  %s (%d fields, id %s)\n", m.Name, m.Fields, strings.Join(m.PrimaryKey, ", "))
		for _, r := range m.Relations {
			fmt.Fprintf(&b, "    %s\n", r)
		}
	}
	if s.Fingerprint != "" {
		fmt.Fprintf(&b, "fingerprint: %s", s.Fingerprint)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var listOps bool

	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate a schema",
		Long: `Compile a CUE schema and report its models and relations.

The schema is a single .cue file or a directory of them. With --operations
every operation the schema exposes is listed as well.

Example:
  qgraph validate ./schema.cue
  qgraph validate ./schema --operations --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], listOps, cmd)
		},
	}

	cmd.Flags().BoolVar(&listOps, "operations", false, "list the operations of the schema")

	return cmd
}

func runValidate(opts *RootOptions, path string, listOps bool, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := loadSchema(path)
	if err != nil {
		_ = formatter.Fail(err)
		return err
	}

	summary := summarize(s)
	if src, err := os.ReadFile(path); err == nil {
		summary.Fingerprint = ir.SchemaFingerprint(string(src))
	}
	if listOps {
		for _, op := range builder.NewQuerySchema(s).Operations() {
			summary.Operations = append(summary.Operations, op.Name)
		}
	}
	formatter.VerboseLog("compiled %d model(s) from %s", len(s.Models), path)
	return formatter.Success(summary)
}

func summarize(s *schema.Schema) SchemaSummary {
	out := SchemaSummary{Models: make([]ModelSummary, 0, len(s.Models))}
	for _, m := range s.Models {
		ms := ModelSummary{
			Name:       m.Name,
			Table:      m.Table,
			Fields:     len(m.Fields),
			PrimaryKey: m.PrimaryKey,
		}
		for _, rf := range m.Relations {
			ms.Relations = append(ms.Relations, fmt.Sprintf("%s -> %s (%s)", rf.Name, rf.Related, rf.Kind()))
		}
		out.Models = append(out.Models, ms)
	}
	return out
}
