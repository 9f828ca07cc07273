package engine

import (
	"context"

	config "partnerbundle/internal/config"
	log "partnerbundle/internal/log"
)

// Driver creates engines; drivers register an instance in their init
type Driver interface {
	New(c *config.Config, l log.Logger) (Engine, error)
}

// Engine builds and serializes container images
type Engine interface {
	Build(ctx context.Context, req *BuildRequest) (string, error)
	// Save writes the image to a new archive file, it never overwrites
	Save(ctx context.Context, ref, archive string) error
	Close() error
}

type BuildRequest struct {
	Ref        string
	Dockerfile string
	Source     string
	Platform   string
	Labels     map[string]string
	// paths never sent in the build context, ignored when outside Source
	Exclude []string
}
