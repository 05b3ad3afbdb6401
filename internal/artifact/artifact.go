package artifact

import (
	"context"
	"io"
	"time"
)

// File is one member of a bundle, recorded in the manifest.
type File struct {
	Name   string `json:"name"`   // path relative to the bundle root
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Bundle is a named, versionless collection of files produced by a run.
type Bundle struct {
	Name      string    `json:"name"`
	RunID     string    `json:"runId"`
	Files     []File    `json:"files"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backend stores bundle files and manifests somewhere durable.
type Backend interface {
	// Put stores one file under runID/bundle/name.
	Put(ctx context.Context, runID, bundle, name, srcPath string) error
	// PutManifest stores the bundle manifest after all files are in.
	PutManifest(ctx context.Context, b Bundle) error
	// List returns the bundles recorded for a run.
	List(ctx context.Context, runID string) ([]Bundle, error)
	// Open streams one stored file back.
	Open(ctx context.Context, runID, bundle, name string) (io.ReadCloser, error)
}
