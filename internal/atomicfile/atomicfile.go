// Package atomicfile provides the write-temp-then-rename primitive used
// by every on-disk store in this module (catalog, watermarks, genre
// cache), so a crash or concurrent reader never observes a half-written
// file (spec §3, §4.5, §4.6, §5).
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/kureha2310/youtube-timestamp-scraper/internal/model"
)

// Write writes data to a temp file beside path, then renames it over path.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return model.NewError(model.KindIO, "atomicfile.Write", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return model.NewError(model.KindIO, "atomicfile.Write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return model.NewError(model.KindIO, "atomicfile.Write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return model.NewError(model.KindIO, "atomicfile.Write", err)
	}
	return nil
}
