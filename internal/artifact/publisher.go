package artifact

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"snapci/pkg/utils"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Publisher collects workspace files matching a glob into a named
// bundle and hands them to a backend. One bundle per upload step.
type Publisher struct {
	Backend Backend
}

func NewPublisher(b Backend) *Publisher {
	return &Publisher{Backend: b}
}

// Publish gathers files under workspace matching glob and stores them as
// bundle name for runID. Zero matches is not an error: the bundle is
// published empty and the caller decides whether to warn. Files are
// uploaded concurrently, the manifest last so a bundle listed is a
// bundle fully stored.
func (p *Publisher) Publish(ctx context.Context, runID, name, glob, workspace string) (*Bundle, error) {
	matches, err := filepath.Glob(filepath.Join(workspace, glob))
	if err != nil {
		return nil, errors.Wrapf(err, "bad glob %q", glob)
	}

	bundle := &Bundle{
		Name:      name,
		RunID:     runID,
		Files:     make([]File, 0, len(matches)),
		CreatedAt: time.Now().UTC(),
	}

	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", m)
		}
		if info.IsDir() {
			continue
		}
		sum, err := utils.HashFile(m)
		if err != nil {
			return nil, errors.Wrapf(err, "hash %s", m)
		}
		rel, err := filepath.Rel(workspace, m)
		if err != nil {
			rel = filepath.Base(m)
		}
		bundle.Files = append(bundle.Files, File{
			Name:   filepath.ToSlash(rel),
			Size:   info.Size(),
			SHA256: sum,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range bundle.Files {
		f := f
		g.Go(func() error {
			src := filepath.Join(workspace, filepath.FromSlash(f.Name))
			return errors.Wrapf(p.Backend.Put(gctx, runID, name, f.Name, src), "store %s", f.Name)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := p.Backend.PutManifest(ctx, *bundle); err != nil {
		return nil, errors.Wrap(err, "store manifest")
	}
	return bundle, nil
}
