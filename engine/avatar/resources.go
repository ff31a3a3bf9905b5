package avatar

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// IsLocalRef reports whether an image reference is locally owned and must be
// released when replaced. Provider-hosted URLs are never released.
func IsLocalRef(ref string) bool {
	return strings.HasPrefix(ref, "blob:") || strings.HasPrefix(ref, "file:")
}

// FileReleaser releases file-backed image references by deleting the
// underlying file. Non-local references are ignored.
type FileReleaser struct {
	log *zap.Logger
}

func NewFileReleaser(log *zap.Logger) *FileReleaser {
	return &FileReleaser{log: log}
}

func (r *FileReleaser) Release(ref string) {
	path, ok := strings.CutPrefix(ref, "file:")
	if !ok {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.log.Warn("Failed to release local image file",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	r.log.Debug("Released local image file", zap.String("path", path))
}
