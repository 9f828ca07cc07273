package pipeline

import (
	"path/filepath"

	config "partnerbundle/internal/config"
)

// Layout is where every artifact of a run lives
type Layout struct {
	Dockerfile string
	Source     string
	Compose    string
	Working    string
	Output     string
	// inside Working
	ComposeCopy string
	EnvSample   string
	Loader      string
	ImageTar    string
	// inside Output
	Package string
}

func NewLayout(c *config.Config) *Layout {
	working := filepath.Clean(c.Bundle.Working)
	output := filepath.Clean(c.Bundle.Output)
	return &Layout{
		Dockerfile:  c.Image.Dockerfile,
		Source:      c.Image.Source,
		Compose:     c.Bundle.Compose,
		Working:     working,
		Output:      output,
		ComposeCopy: filepath.Join(working, filepath.Base(c.Bundle.Compose)),
		EnvSample:   filepath.Join(working, config.EnvSampleFile),
		Loader:      filepath.Join(working, config.LoaderScriptFile),
		ImageTar:    filepath.Join(working, c.Bundle.Archive),
		Package:     filepath.Join(output, filepath.Base(working)+".tar.gz"),
	}
}

// Folder is the name of the folder inside the package
func (l *Layout) Folder() string {
	return filepath.Base(l.Working)
}
