package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// NodeRow is one node in the inspect command output.
type NodeRow struct {
	UUID      string `json:"uuid"`
	Type      string `json:"type"`
	Index     int    `json:"index"`
	Alive     bool   `json:"alive"`
	Label     string `json:"label,omitempty"`
	Operation string `json:"operation,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// InspectResult is the inspect command payload.
type InspectResult struct {
	FeatureID string    `json:"featureId"`
	Nodes     []NodeRow `json:"nodes"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		featureID   string
		typeName    string
		includeDead bool
	)

	cmd := &cobra.Command{
		Use:           "inspect <document.json> --feature <id>",
		Short:         "List a feature's tracked nodes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], featureID, typeName, includeDead, cmd)
		},
	}

	cmd.Flags().StringVar(&featureID, "feature", "", "feature id to inspect (required)")
	cmd.Flags().StringVar(&typeName, "type", "", "restrict to one entity type (face|edge|vertex)")
	cmd.Flags().BoolVar(&includeDead, "dead", false, "include dead nodes")
	cmd.MarkFlagRequired("feature")

	return cmd
}

func runInspect(opts *RootOptions, path, featureID, typeName string, includeDead bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var typeFilter topo.EntityType
	if typeName != "" {
		typ, err := topo.ParseEntityType(typeName)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --type", err)
		}
		typeFilter = typ
	}

	t, err := loadTracker(path)
	if err != nil {
		return err
	}

	if _, ok := t.FeatureMapping(featureID); !ok {
		formatter.Error(ErrCodeNotFound, fmt.Sprintf("feature %q not found in document", featureID), nil)
		return NewExitError(ExitFailure, "feature not found")
	}

	nodes := t.NodesForFeature(featureID)
	result := InspectResult{FeatureID: featureID, Nodes: []NodeRow{}}
	for _, n := range nodes {
		if !includeDead && !n.ID.Alive {
			continue
		}
		if typeFilter != "" && n.ID.Type != typeFilter {
			continue
		}
		result.Nodes = append(result.Nodes, NodeRow{
			UUID:      n.ID.UUID,
			Type:      string(n.ID.Type),
			Index:     n.Index,
			Alive:     n.ID.Alive,
			Label:     n.ID.Label,
			Operation: n.ID.SourceOperationID,
			Reason:    n.DeadReason,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Feature %s: %d node(s)\n", featureID, len(result.Nodes))
	for _, row := range result.Nodes {
		state := "alive"
		if !row.Alive {
			state = "dead"
			if row.Reason != "" {
				state = "dead (" + row.Reason + ")"
			}
		}
		fmt.Fprintf(&b, "  %-6s #%-4d %s  %s\n", row.Type, row.Index, row.UUID, state)
	}

	return formatter.SuccessText(result, strings.TrimRight(b.String(), "\n"))
}
