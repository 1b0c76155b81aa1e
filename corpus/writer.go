package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/ymj/core"
	"github.com/poiesic/ymj/format"
)

// SaveFile renders doc and replaces the file at path. The new content is
// written to a temporary file in the same directory and renamed over the
// original, so readers see either the old or the new file.
func SaveFile(path string, doc *core.Document) error {
	data, err := format.Render(doc)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) (err error) {
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
