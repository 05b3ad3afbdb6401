package artifact

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const manifestFile = "manifest.json"

// LocalStore keeps bundles on the local filesystem under
// baseDir/<runID>/<bundle>/, with a manifest.json per bundle.
type LocalStore struct {
	BaseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) bundleDir(runID, bundle string) string {
	return filepath.Join(s.BaseDir, runID, bundle)
}

func (s *LocalStore) Put(ctx context.Context, runID, bundle, name, srcPath string) error {
	dst := filepath.Join(s.bundleDir(runID, bundle), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *LocalStore) PutManifest(ctx context.Context, b Bundle) error {
	dir := s.bundleDir(b.RunID, b.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

func (s *LocalStore) List(ctx context.Context, runID string) ([]Bundle, error) {
	entries, err := os.ReadDir(filepath.Join(s.BaseDir, runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var bundles []Bundle
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.bundleDir(runID, e.Name()), manifestFile))
		if err != nil {
			continue // bundle without a manifest was never fully stored
		}
		var b Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, errors.Wrapf(err, "manifest for bundle %s", e.Name())
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (s *LocalStore) Open(ctx context.Context, runID, bundle, name string) (io.ReadCloser, error) {
	// All three parts come from callers outside the store; none may step
	// out of the base directory.
	for _, part := range []string{runID, bundle, filepath.FromSlash(name)} {
		if !filepath.IsLocal(part) {
			return nil, errors.Errorf("non-local path %q", part)
		}
	}
	return os.Open(filepath.Join(s.bundleDir(runID, bundle), filepath.FromSlash(name)))
}
