package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/dataset"
)

// FileManager owns writes into the datasets tree: creating dataset
// directories and streaming uploads onto disk with a size limit.
type FileManager struct {
	maxUploadBytes int64
}

func NewFileManager(maxUploadBytes int64) *FileManager {
	return &FileManager{maxUploadBytes: maxUploadBytes}
}

// CreateDataset makes the dataset directory under the root. Creating an
// existing dataset is not an error.
func (fm *FileManager) CreateDataset(root, name string) (string, error) {
	if err := validateDatasetName(name); err != nil {
		return "", err
	}

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}
	return dir, nil
}

// SaveUploadedMedia streams an uploaded media file into the dataset
// directory. The original extension is kept; the base name is replaced with
// a uuid so concurrent uploads never collide.
func (fm *FileManager) SaveUploadedMedia(datasetDir string, file multipart.File, filename string) (string, error) {
	ext := normalizeExtension(filename)
	if !dataset.IsMedia("x"+ext, dataset.ModeAll) {
		return "", fmt.Errorf("unsupported media extension %q", ext)
	}

	filenameOnDisk := fmt.Sprintf("%s%s", uuid.NewString(), ext)
	path := filepath.Join(datasetDir, filenameOnDisk)

	if err := fm.writeWithLimit(path, file); err != nil {
		return "", err
	}

	return path, nil
}

func (fm *FileManager) writeWithLimit(path string, file multipart.File) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}

	cleanup := func(err error) error {
		out.Close()
		os.Remove(path)
		return err
	}

	total := int64(0)
	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			total += int64(n)
			if fm.maxUploadBytes > 0 && total > fm.maxUploadBytes {
				return cleanup(fmt.Errorf("media file exceeds maximum size"))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write media file: %w", werr))
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("read media content: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close media file: %w", err)
	}

	return nil
}

func validateDatasetName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return fmt.Errorf("invalid dataset name %q", name)
	}
	return nil
}

func normalizeExtension(filename string) string {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
