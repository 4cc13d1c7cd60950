package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// StatsResult is the stats command payload.
type StatsResult struct {
	File       string         `json:"file"`
	Features   []string       `json:"features"`
	Alive      map[string]int `json:"alive"`
	Dead       map[string]int `json:"dead"`
	Operations int            `json:"operations"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stats <document.json>",
		Short:         "Print liveness and provenance counts for a document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runStats(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	t, err := loadTracker(path)
	if err != nil {
		return err
	}

	stats := t.Stats()
	result := StatsResult{
		File:       path,
		Features:   t.Features(),
		Alive:      make(map[string]int, len(stats.AliveByType)),
		Dead:       make(map[string]int, len(stats.DeadByType)),
		Operations: stats.Operations,
	}
	for typ, n := range stats.AliveByType {
		result.Alive[string(typ)] = n
	}
	for typ, n := range stats.DeadByType {
		result.Dead[string(typ)] = n
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", path)
	fmt.Fprintf(&b, "Features: %d (%s)\n", len(result.Features), strings.Join(result.Features, ", "))
	for _, typ := range topo.EntityTypes {
		fmt.Fprintf(&b, "%-8s alive=%d dead=%d\n", typ, stats.AliveByType[typ], stats.DeadByType[typ])
	}
	fmt.Fprintf(&b, "Operations logged: %d", stats.Operations)

	return formatter.SuccessText(result, b.String())
}
