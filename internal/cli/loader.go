package cli

import (
	"fmt"
	"os"

	"github.com/tessellate-cad/topotrack/internal/tracker"
)

// readDocumentFile loads a serialized document from disk.
// A missing or unreadable file is a command error (exit 2), not a
// validation failure.
func readDocumentFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("document not found: %s (%s)", path, ErrCodeNotFound))
		}
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("reading %s (%s)", path, ErrCodeReadFailed), err)
	}
	return data, nil
}

// loadTracker restores a tracker from a document file for read-only
// inspection.
func loadTracker(path string) (*tracker.Tracker, error) {
	data, err := readDocumentFile(path)
	if err != nil {
		return nil, err
	}
	t := tracker.New()
	if err := t.Deserialize(data); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("malformed document %s (%s)", path, ErrCodeMalformed), err)
	}
	return t, nil
}
