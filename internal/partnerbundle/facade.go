package partnerbundle

import (
	"context"
	"fmt"
	"io"
	"os"

	bundle "partnerbundle/internal/bundle"
	config "partnerbundle/internal/config"
	engine "partnerbundle/internal/engine"
	log "partnerbundle/internal/log"
	pipeline "partnerbundle/internal/pipeline"
	tar "partnerbundle/pkg/tar"

	humanize "github.com/dustin/go-humanize"

	// Register engine drivers
	_ "partnerbundle/internal/engine/dockerapi"
	_ "partnerbundle/internal/engine/dockercli"
)

// EngineLoader returns the engine used by a run
type EngineLoader func(c *config.Config, l log.Logger) (engine.Engine, error)

type PartnerBundleCliFacade struct {
	log    log.Logger
	c      *config.Config
	output io.Writer
	loader EngineLoader
}

func New(c *config.Config, l log.Logger) *PartnerBundleCliFacade {
	return &PartnerBundleCliFacade{
		log:    l,
		c:      c,
		output: os.Stdout,
		loader: func(c *config.Config, l log.Logger) (engine.Engine, error) {
			l.Debugf("List of registered engine drivers: %s", engine.ListEngineDrivers())
			return engine.LoadEngineDriver(c.Engine.Driver, c, l)
		},
	}
}

// WithEngine replaces how the engine is obtained
func (d *PartnerBundleCliFacade) WithEngine(loader EngineLoader) *PartnerBundleCliFacade {
	d.loader = loader
	return d
}

// WithOutput sets where generated artifacts and listings are printed
func (d *PartnerBundleCliFacade) WithOutput(w io.Writer) *PartnerBundleCliFacade {
	d.output = w
	return d
}

// Prepare runs the bundle stages starting at `from`
func (d *PartnerBundleCliFacade) Prepare(ctx context.Context, from string) error {
	stage := pipeline.Build
	if from != "" {
		s, err := pipeline.ParseStage(from)
		if err != nil {
			return err
		}
		stage = s
	}
	e, err := d.loader(d.c, d.log)
	if err != nil {
		return err
	}
	defer e.Close()
	return pipeline.New(d.c, e, d.log).Run(ctx, stage)
}

// ShowLoader prints the partner loader script
func (d *PartnerBundleCliFacade) ShowLoader() error {
	script, err := bundle.LoaderScript(bundle.NewData(d.c))
	if err == nil {
		_, err = fmt.Fprint(d.output, script)
	}
	return err
}

// ShowEnv prints the .env sample
func (d *PartnerBundleCliFacade) ShowEnv() error {
	env, err := bundle.EnvSample(bundle.NewData(d.c))
	if err == nil {
		_, err = fmt.Fprint(d.output, env)
	}
	return err
}

// Inspect lists the contents of the partner package
func (d *PartnerBundleCliFacade) Inspect(ctx context.Context) error {
	pkg := pipeline.NewLayout(d.c).Package
	entries, err := tar.ListTarGzFile(ctx, pkg)
	if err != nil {
		return fmt.Errorf("Unable to read partner package '%s': %s", pkg, err.Error())
	}
	fmt.Fprintf(d.output, "%s\n", pkg)
	for _, e := range entries {
		if e.Dir {
			fmt.Fprintf(d.output, "  %s\n", e.Name)
		} else {
			fmt.Fprintf(d.output, "  %s (%s)\n", e.Name, humanize.Bytes(uint64(e.Size)))
		}
	}
	return nil
}
