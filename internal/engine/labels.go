package engine

import (
	"fmt"
	"strings"
	"time"

	config "partnerbundle/internal/config"
	git "partnerbundle/pkg/git"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Labels returns the OCI annotations stamped on the built image; info may be nil
func Labels(c *config.Config, info *git.Info, now time.Time) map[string]string {
	labels := map[string]string{
		ocispec.AnnotationTitle:   c.Image.Name,
		ocispec.AnnotationVersion: c.Image.Version,
		ocispec.AnnotationCreated: now.UTC().Format(time.RFC3339),
	}
	if info != nil {
		labels[ocispec.AnnotationRevision] = info.Revision
		if info.Remote != "" {
			labels[ocispec.AnnotationSource] = info.Remote
		}
	}
	return labels
}

// ParsePlatform parses "os/arch[/variant]"
func ParsePlatform(s string) (*ocispec.Platform, error) {
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("Invalid platform '%s', expected os/arch[/variant]", s)
		}
	}
	switch len(parts) {
	case 2:
		return &ocispec.Platform{OS: parts[0], Architecture: parts[1]}, nil
	case 3:
		return &ocispec.Platform{OS: parts[0], Architecture: parts[1], Variant: parts[2]}, nil
	default:
		return nil, fmt.Errorf("Invalid platform '%s', expected os/arch[/variant]", s)
	}
}

// FormatPlatform is the inverse of ParsePlatform
func FormatPlatform(p *ocispec.Platform) string {
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}
