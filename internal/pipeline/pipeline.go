package pipeline

import (
	"context"
	"os"
	"time"

	bundle "partnerbundle/internal/bundle"
	config "partnerbundle/internal/config"
	engine "partnerbundle/internal/engine"
	fsops "partnerbundle/internal/fsops"
	log "partnerbundle/internal/log"
	git "partnerbundle/pkg/git"
	tar "partnerbundle/pkg/tar"

	humanize "github.com/dustin/go-humanize"
	errors "github.com/pkg/errors"
)

// Pipeline produces the partner package, one stage after the other
type Pipeline struct {
	config *config.Config
	engine engine.Engine
	layout *Layout
	log    log.Logger
	now    func() time.Time
}

func New(c *config.Config, e engine.Engine, l log.Logger) *Pipeline {
	return &Pipeline{
		config: c,
		engine: e,
		layout: NewLayout(c),
		log:    l,
		now:    time.Now,
	}
}

func (p *Pipeline) Layout() *Layout {
	return p.layout
}

// Run executes the stages from `from` until Done and stops at the first error,
// which is logged here and nowhere else. Nothing is rolled back.
func (p *Pipeline) Run(ctx context.Context, from Stage) error {
	for _, s := range Stages() {
		if s < from {
			continue
		}
		p.log.Debugf("Running stage %s", s)
		if err := p.RunStage(ctx, s); err != nil {
			p.log.Error(err.Error())
			return err
		}
		p.log.Debugf("State %s reached", s.State())
	}
	return nil
}

func (p *Pipeline) RunStage(ctx context.Context, s Stage) error {
	switch s {
	case Build:
		return p.build(ctx)
	case Compose:
		return p.compose()
	case Save:
		return p.save(ctx)
	case Archive:
		return p.archive(ctx)
	case Clean:
		return p.clean()
	case Done:
		return p.done()
	}
	return errors.Errorf("Unknown stage %d", int(s))
}

func (p *Pipeline) build(ctx context.Context) error {
	if _, err := os.Stat(p.layout.Dockerfile); err != nil {
		return missing(Build, "Dockerfile not found at '%s'", p.layout.Dockerfile)
	}
	var info *git.Info
	if i, err := git.Describe(p.layout.Source); err == nil {
		info = i
	} else {
		p.log.Debugf("No revision label: %s", err.Error())
	}
	req := &engine.BuildRequest{
		Ref:        p.config.Image.Ref(),
		Dockerfile: p.layout.Dockerfile,
		Source:     p.layout.Source,
		Platform:   p.config.Image.Platform,
		Labels:     engine.Labels(p.config, info, p.now()),
		Exclude:    []string{p.layout.Working, p.layout.Output},
	}
	if req.Platform != "" {
		platform, err := engine.ParsePlatform(req.Platform)
		if err != nil {
			return failure(Build, err)
		}
		req.Platform = engine.FormatPlatform(platform)
	}
	p.log.Infof("Building image '%s' from '%s' ...", req.Ref, p.layout.Source)
	id, err := p.engine.Build(ctx, req)
	if err != nil {
		return failure(Build, err)
	}
	p.log.Infof("Image '%s' built: %s", req.Ref, id)
	return nil
}

func (p *Pipeline) compose() error {
	l := p.layout
	if _, err := os.Stat(l.Compose); err != nil {
		return missing(Compose, "Composition file not found at '%s'", l.Compose)
	}
	p.log.Infof("Preparing bundle folder '%s' ...", l.Working)
	if err := fsops.EnsureDir(l.Working); err != nil {
		return failure(Compose, err)
	}
	if err := fsops.CopyFile(l.Compose, l.ComposeCopy); err != nil {
		return failure(Compose, err)
	}
	rewrite, err := bundle.RewriteCompose(l.ComposeCopy, p.config.Bundle.Keys())
	if err != nil {
		return failure(Compose, err)
	}
	for _, k := range rewrite.Missing {
		p.log.Warnf("Variable '%s' not found in '%s', left as it is", k, l.ComposeCopy)
	}
	p.log.Infof("Composition file '%s' templated with %d variables", l.ComposeCopy, len(rewrite.Replaced))
	data := bundle.NewData(p.config)
	env, err := bundle.EnvSample(data)
	if err != nil {
		return failure(Compose, err)
	}
	if err = fsops.WriteFile(env, l.EnvSample, 0644); err != nil {
		return failure(Compose, err)
	}
	loader, err := bundle.LoaderScript(data)
	if err != nil {
		return failure(Compose, err)
	}
	if err = fsops.WriteFile(loader, l.Loader, 0755); err != nil {
		return failure(Compose, err)
	}
	p.log.Infof("Partner loader script written to '%s'", l.Loader)
	return nil
}

func (p *Pipeline) save(ctx context.Context) error {
	l := p.layout
	exists, err := fsops.Exists(l.ImageTar)
	if err != nil {
		return failure(Save, err)
	}
	if exists {
		return guard(Save, "Image archive '%s' already exists, refusing to overwrite it", l.ImageTar)
	}
	if exists, err = fsops.Exists(l.Working); err != nil {
		return failure(Save, err)
	} else if !exists {
		return missing(Save, "Bundle folder '%s' not found, run the compose stage first", l.Working)
	}
	ref := p.config.Image.Ref()
	p.log.Infof("Saving image '%s' to '%s' ...", ref, l.ImageTar)
	if err = p.engine.Save(ctx, ref, l.ImageTar); err != nil {
		// the guard above proves any file there now is ours
		if errRm := fsops.RemoveFile(l.ImageTar); errRm != nil {
			p.log.Warn(errRm.Error())
		}
		return failure(Save, err)
	}
	return nil
}

func (p *Pipeline) archive(ctx context.Context) error {
	l := p.layout
	if err := fsops.EnsureDir(l.Output); err != nil {
		return failure(Archive, err)
	}
	p.log.Infof("Compressing '%s' into '%s' ...", l.Working, l.Package)
	if err := tar.TarGzDir(ctx, l.Working, l.Folder(), l.Package, p.log); err != nil {
		return failure(Archive, errors.Wrapf(err, "Unable to compress '%s'", l.Working))
	}
	return nil
}

func (p *Pipeline) clean() error {
	l := p.layout
	if p.config.Bundle.Keep {
		p.log.Infof("Keeping bundle folder '%s'", l.Working)
		return nil
	}
	exists, err := fsops.Exists(l.Working)
	if err != nil {
		return failure(Clean, err)
	}
	if !exists {
		p.log.Debugf("Bundle folder '%s' already removed", l.Working)
		return nil
	}
	p.log.Infof("Removing bundle folder '%s' ...", l.Working)
	if err = fsops.RemoveDirRecursive(l.Working); err != nil {
		return failure(Clean, err)
	}
	return nil
}

func (p *Pipeline) done() error {
	l := p.layout
	info, err := os.Stat(l.Package)
	if err != nil || info.IsDir() {
		return missing(Done, "Partner package '%s' was not produced", l.Package)
	}
	p.log.Infof("Partner package ready: '%s' (%s)", l.Package, humanize.Bytes(uint64(info.Size())))
	p.log.Infof("Send it to the partner: extract it and run ./%s inside the '%s' folder", config.LoaderScriptFile, l.Folder())
	return nil
}
