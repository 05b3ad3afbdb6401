package main

import (
	"snapci/internal/artifact"
	"snapci/internal/config"
)

// newBackend picks the artifact backend the config asks for.
func newBackend(cfg *config.Config) (artifact.Backend, error) {
	if cfg.Artifacts.Backend == "s3" {
		return artifact.NewS3Store(cfg.Artifacts.S3)
	}
	return artifact.NewLocalStore(cfg.ArtifactsDir()), nil
}

func newPublisher(b artifact.Backend) *artifact.Publisher {
	return artifact.NewPublisher(b)
}
