package configurator

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	config "partnerbundle/internal/config"
	validator "partnerbundle/internal/config/validator"
	log "partnerbundle/internal/log"

	logrus "github.com/sirupsen/logrus"
	cobra "github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	viper "github.com/spf13/viper"
)

// Configurator resolves the configuration once, at program start
type Configurator interface {
	InitConfig() *config.Config
	LoadConfig(configArg string) (*config.Config, error)
	CheckConfig(c *config.Config) error
	GetConfigFile() string
	GetConfigMap(c *config.Config) (map[string]interface{}, error)
	Logger() log.Logger
}

// setting is one leaf of the config struct
type setting struct {
	key   string
	def   string
	env   string
	flag  string
	usage string
	kind  reflect.Kind
}

type Viperator struct {
	v       *viper.Viper
	command *cobra.Command
	version string
	file    string
	log     *logrus.Logger
}

// New registers the flags described by the config tags on the command
func New(version, configArg string, command *cobra.Command) *Viperator {
	c := &Viperator{
		v:       viper.New(),
		command: command,
		version: version,
		log:     log.New(),
	}
	flags := command.PersistentFlags()
	flags.StringP(configArg, "c", "", "Configuration file (default ./"+config.ConfigFile+")")
	for _, s := range settings(reflect.TypeOf(config.Config{}), "") {
		c.v.SetDefault(s.key, s.def)
		if s.env != "" {
			c.v.BindEnv(s.key, s.env)
		}
		if f := addFlag(flags, s); f != nil {
			c.v.BindPFlag(s.key, f)
		}
	}
	return c
}

// addFlag defines the command line flag of a setting, if it has one
func addFlag(flags *pflag.FlagSet, s setting) *pflag.Flag {
	if s.flag == "" {
		return nil
	}
	switch s.kind {
	case reflect.Bool:
		flags.Bool(s.flag, false, s.usage)
	default:
		flags.String(s.flag, "", s.usage)
	}
	return flags.Lookup(s.flag)
}

func settings(t reflect.Type, prefix string) (result []setting) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			result = append(result, settings(f.Type, key)...)
			continue
		}
		s := setting{
			key:  key,
			def:  f.Tag.Get("default"),
			env:  f.Tag.Get("env"),
			kind: f.Type.Kind(),
		}
		if flag := f.Tag.Get("flag"); flag != "" {
			s.flag = strings.ReplaceAll(flag, " ", "-")
			s.usage = "Set " + flag
			if s.env != "" {
				s.usage += " (env " + s.env + ")"
			}
		}
		result = append(result, s)
	}
	return
}

// InitConfig returns the configuration made only of defaults
func (c *Viperator) InitConfig() *config.Config {
	cfg := &config.Config{}
	for _, s := range settings(reflect.TypeOf(*cfg), "") {
		setField(reflect.ValueOf(cfg).Elem(), s.key, s.def)
	}
	return cfg
}

func setField(v reflect.Value, key, value string) {
	parts := strings.SplitN(key, ".", 2)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("mapstructure") != parts[0] {
			continue
		}
		field := v.Field(i)
		if len(parts) == 2 {
			setField(field, parts[1], value)
			return
		}
		switch field.Kind() {
		case reflect.Bool:
			b, _ := strconv.ParseBool(value)
			field.SetBool(b)
		case reflect.String:
			field.SetString(value)
		}
		return
	}
}

// LoadConfig reads the optional file, env and flags into a Config
func (c *Viperator) LoadConfig(configArg string) (*config.Config, error) {
	c.v.SetConfigType(config.ConfigType)
	file := ""
	if f := c.command.PersistentFlags().Lookup(configArg); f != nil {
		file = f.Value.String()
	}
	if file != "" {
		c.v.SetConfigFile(file)
		if err := c.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Unable to read configuration file '%s': %s", file, err.Error())
		}
	} else {
		c.v.SetConfigName(config.ConfigName)
		c.v.AddConfigPath(".")
		if err := c.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("Unable to read configuration file: %s", err.Error())
			}
		}
	}
	c.file = c.v.ConfigFileUsed()
	cfg := &config.Config{}
	if err := c.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Unable to decode configuration: %s", err.Error())
	}
	if err := log.Configure(c.log, cfg.Log.Level, cfg.Log.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Viperator) CheckConfig(cfg *config.Config) error {
	return validator.Validate(cfg)
}

// GetConfigFile returns the file used, empty when there is none
func (c *Viperator) GetConfigFile() string {
	return c.file
}

// GetConfigMap returns the configuration as nested maps keyed by setting name
func (c *Viperator) GetConfigMap(cfg *config.Config) (map[string]interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Configuration not loaded")
	}
	return configMap(reflect.ValueOf(*cfg)), nil
}

func configMap(v reflect.Value) map[string]interface{} {
	result := make(map[string]interface{})
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		if v.Field(i).Kind() == reflect.Struct {
			result[name] = configMap(v.Field(i))
		} else {
			result[name] = v.Field(i).Interface()
		}
	}
	return result
}

func (c *Viperator) Logger() log.Logger {
	return c.log
}
