package program

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"partnerbundle/internal/config"
	"partnerbundle/internal/config/configurator"
	"partnerbundle/internal/partnerbundle"
	"partnerbundle/internal/pipeline"

	cobra "github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"
)

// reportedError was already logged, the entry point only has to exit
type reportedError struct {
	error
}

func (e *reportedError) Unwrap() error {
	return e.error
}

// Reported tells whether err was already shown to the user
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

type Program struct {
	Build        string
	Config       *config.Config
	ConfigArg    string
	Configurator configurator.Configurator
}

func NewProgram(build, version, configArg string, command *cobra.Command) *Program {
	p := Program{
		Build:        build,
		ConfigArg:    configArg,
		Configurator: configurator.New(version, configArg, command),
	}
	return &p
}

func (p *Program) Init() {
	p.Config = p.Configurator.InitConfig()
}

// fail logs err once and marks it as reported
func (p *Program) fail(err error) error {
	if err == nil || Reported(err) {
		return err
	}
	p.Configurator.Logger().Error(err.Error())
	return &reportedError{err}
}

func (p *Program) LoadConfig() error {
	cfg, err := p.Configurator.LoadConfig(p.ConfigArg)
	if err != nil {
		return p.fail(err)
	}
	log := p.Configurator.Logger()
	if f := p.Configurator.GetConfigFile(); f != "" {
		log.Debugf("Configuration loaded from file: %s", f)
	}
	if err = p.Configurator.CheckConfig(cfg); err != nil {
		return p.fail(err)
	}
	p.Config = cfg
	return nil
}

func (p *Program) GetYamlConfig() ([]byte, error) {
	cfg, err := p.Configurator.GetConfigMap(p.Config)
	if err == nil {
		return yaml.Marshal(cfg)
	}
	return []byte{}, p.fail(err)
}

func (p *Program) Prepare(from string) error {
	log := p.Configurator.Logger()
	action := partnerbundle.New(p.Config, log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := action.Prepare(ctx, from)
	var se *pipeline.StageError
	if errors.As(err, &se) {
		// stage errors are logged by the pipeline
		return &reportedError{err}
	}
	return p.fail(err)
}

func (p *Program) ShowLoader() error {
	log := p.Configurator.Logger()
	return p.fail(partnerbundle.New(p.Config, log).ShowLoader())
}

func (p *Program) ShowEnv() error {
	log := p.Configurator.Logger()
	return p.fail(partnerbundle.New(p.Config, log).ShowEnv())
}

func (p *Program) Inspect() error {
	log := p.Configurator.Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return p.fail(partnerbundle.New(p.Config, log).Inspect(ctx))
}
