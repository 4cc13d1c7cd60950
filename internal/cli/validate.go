package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessellate-cad/topotrack/internal/docschema"
	"github.com/tessellate-cad/topotrack/internal/tracker"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	File  string `json:"file"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document.json>",
		Short: "Validate a serialized topology document",
		Long: `Validate a serialized topology document against the persisted-format schema.

Runs the CUE schema check followed by a full restore, so cross-reference
problems (mapping entries pointing at missing or dead nodes, disagreeing
map directions) are caught as well as structural ones.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := readDocumentFile(path)
	if err != nil {
		return err
	}

	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	if err := docschema.Validate(data); err != nil {
		formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return NewExitError(ExitFailure, "document failed schema validation")
	}

	// Schema-valid documents can still be internally inconsistent;
	// a full restore is the authoritative check.
	t := tracker.New()
	if err := t.Deserialize(data); err != nil {
		formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return NewExitError(ExitFailure, "document failed restore validation")
	}

	return formatter.SuccessText(ValidationResult{Valid: true, File: path}, "✓ Document valid")
}
