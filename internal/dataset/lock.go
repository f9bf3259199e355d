package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

const LockFileName = "_dataset.json"

// ReadLock loads the lock manifest if present.
func ReadLock(dir string) (domain.DatasetLock, bool) {
	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		return domain.DatasetLock{}, false
	}

	var lock domain.DatasetLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return domain.DatasetLock{}, false
	}
	return lock, true
}

// WriteLock writes the _dataset.json manifest, marking the dataset as
// locked training input with a snapshot of its counts. Locking an already
// locked dataset is refused; the manifest is written once.
func WriteLock(dir, name string, st Status) (domain.DatasetLock, error) {
	if existing, ok := ReadLock(dir); ok && existing.IsLocked {
		return domain.DatasetLock{}, fmt.Errorf("dataset %s is already locked", name)
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return domain.DatasetLock{}, fmt.Errorf("resolve dataset path: %w", err)
	}

	lock := domain.DatasetLock{
		Identifier:     uuid.NewString(),
		DatasetName:    name,
		FolderPath:     absPath,
		IsLocked:       true,
		TotalMedia:     st.Total,
		CaptionedMedia: st.Captioned,
		LockedAt:       time.Now().UTC(),
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return domain.DatasetLock{}, fmt.Errorf("encode lock manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, LockFileName), data, 0o644); err != nil {
		return domain.DatasetLock{}, fmt.Errorf("write lock manifest: %w", err)
	}

	return lock, nil
}
