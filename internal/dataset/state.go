package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

const StateFileName = "_caption_state.json"

// ReadState loads the caption sidecar for a dataset directory. A missing or
// malformed file returns ok=false: an external writer may be mid-update, so
// the caller treats the dataset as having no active run and moves on.
func ReadState(dir string) (domain.CaptionState, bool) {
	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	if err != nil {
		return domain.CaptionState{}, false
	}

	var state domain.CaptionState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.CaptionState{}, false
	}
	if state.Status == "" {
		return domain.CaptionState{}, false
	}
	return state, true
}

// WriteState overwrites the caption sidecar, stamping UpdatedAt. The write
// goes through a temp file and rename so readers never observe a torn file.
// There is no file locking; the worker's single-flight guard is the only
// concurrency control, and last writer wins.
func WriteState(dir string, state domain.CaptionState) error {
	if state.Version == 0 {
		state.Version = domain.CaptionStateVersion
	}
	state.UpdatedAt = time.Now().UTC()

	tmp, err := os.CreateTemp(dir, "caption-state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode state: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, StateFileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// DeleteState removes the caption sidecar. Deleting an absent sidecar is
// not an error so cancel stays idempotent.
func DeleteState(dir string) error {
	err := os.Remove(filepath.Join(dir, StateFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete state file: %w", err)
	}
	return nil
}
