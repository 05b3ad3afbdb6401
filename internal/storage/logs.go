package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogStorage saves per-step output under a base directory, one file per
// executed step, grouped by run.
type LogStorage struct {
	BaseDir string
}

func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveLog writes a step's combined output and returns the file path.
// Filenames carry a timestamp so re-runs of the same step never clobber
// an earlier log.
func (ls *LogStorage) SaveLog(runID, step, output string) (string, error) {
	dir := filepath.Join(ls.BaseDir, sanitize(runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405.000000000")
	filename := fmt.Sprintf("%s_%s.log", sanitize(step), timestamp)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// sanitize keeps step names filesystem-safe.
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "step"
	}
	return string(clean)
}
