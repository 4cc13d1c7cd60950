package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// ResolveResult is the resolve command payload.
type ResolveResult struct {
	FeatureID string `json:"featureId"`
	Type      string `json:"type"`
	Index     int    `json:"index"`
	UUID      string `json:"uuid"`
}

// NewResolveCommand creates the resolve command.
//
// Consumers persist uuids, never raw indices; this command is the
// manual version of what a selection layer does on every redraw.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		featureID string
		typeName  string
		index     int
		uuid      string
	)

	cmd := &cobra.Command{
		Use:           "resolve <document.json> --feature <id> --type <t> (--index <n> | --uuid <u>)",
		Short:         "Resolve between a display index and a stable uuid",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], featureID, typeName, index, uuid, cmd)
		},
	}

	cmd.Flags().StringVar(&featureID, "feature", "", "feature id (required)")
	cmd.Flags().StringVar(&typeName, "type", "", "entity type: face|edge|vertex (required)")
	cmd.Flags().IntVar(&index, "index", -1, "display index to resolve to a uuid")
	cmd.Flags().StringVar(&uuid, "uuid", "", "stable uuid to resolve to an index")
	cmd.MarkFlagRequired("feature")
	cmd.MarkFlagRequired("type")

	return cmd
}

func runResolve(opts *RootOptions, path, featureID, typeName string, index int, uuid string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	typ, err := topo.ParseEntityType(typeName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --type", err)
	}

	byIndex := index >= 0
	byUUID := uuid != ""
	if byIndex == byUUID {
		return NewExitError(ExitCommandError, "exactly one of --index or --uuid is required")
	}

	t, err := loadTracker(path)
	if err != nil {
		return err
	}

	result := ResolveResult{FeatureID: featureID, Type: string(typ)}
	if byIndex {
		id, ok := t.StableIDForIndex(featureID, typ, index)
		if !ok {
			formatter.Error(ErrCodeNotFound, fmt.Sprintf("no %s at index %d in feature %q", typ, index, featureID), nil)
			return NewExitError(ExitFailure, "reference not resolvable")
		}
		result.Index = index
		result.UUID = id.UUID
	} else {
		idx, ok := t.IndexForStableID(featureID, typ, uuid)
		if !ok {
			formatter.Error(ErrCodeNotFound, fmt.Sprintf("uuid %s not mapped for %s in feature %q", uuid, typ, featureID), nil)
			return NewExitError(ExitFailure, "reference not resolvable")
		}
		result.Index = idx
		result.UUID = uuid
	}

	return formatter.SuccessText(result,
		fmt.Sprintf("%s %s #%d ⇄ %s", result.FeatureID, result.Type, result.Index, result.UUID))
}
