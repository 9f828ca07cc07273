package config

const (
	ConfigType string = "yaml"
	ConfigFile string = "partnerbundle.yml"
	ConfigName string = "partnerbundle"
)

// Files generated inside the working folder
const (
	EnvSampleFile    string = ".env"
	LoaderScriptFile string = "partner_setup.sh"
)

// AgentKeys are templated in the composition file, each prefixed with Bundle.KeyPrefix
var AgentKeys = []string{"AGENT_NAMES", "AGENT_URLS", "AGENT_MODELS", "AGENT_API_KEYS"}

type Image struct {
	Name       string `mapstructure:"name" valid:"required" default:"zoo-node" env:"IMAGE_NAME" flag:"image name"`
	Version    string `mapstructure:"version" valid:"required" default:"latest" env:"IMAGE_VERSION" flag:"image version"`
	Dockerfile string `mapstructure:"dockerfile" valid:"required" default:"docker-build/Dockerfile" env:"DOCKERFILE_PATH" flag:"dockerfile"`
	Source     string `mapstructure:"source" valid:"required" default:"." env:"SOURCE_PATH" flag:"source"`
	Platform   string `mapstructure:"platform" default:"" env:"PB_IMAGE_PLATFORM" flag:"platform"`
}

type Bundle struct {
	Compose   string `mapstructure:"compose" valid:"required" default:"docker-build/docker-compose.yml" env:"COMPOSE_FILE" flag:"compose file"`
	Archive   string `mapstructure:"archive" valid:"filename,required" default:"zoo-node.tar" env:"TAR_FILE" flag:"archive"`
	Working   string `mapstructure:"working" valid:"required" default:"zoo-partner" env:"PARTNER_FOLDER" flag:"working folder"`
	Output    string `mapstructure:"output" valid:"required" default:"partner-release" env:"OUTPUT_FOLDER" flag:"output folder"`
	KeyPrefix string `mapstructure:"keyprefix" valid:"envprefix" default:"INITIAL_" env:"PB_KEY_PREFIX" flag:"key prefix"`
	UIURL     string `mapstructure:"uiurl" default:"http://localhost:9550" env:"PB_UI_URL" flag:"ui url"`
	Keep      bool   `mapstructure:"keep" default:"false" env:"PB_KEEP" flag:"keep"`
}

// Engine selects how the container engine is driven
type Engine struct {
	Driver string `mapstructure:"driver" valid:"in(api|cli),required" default:"api" env:"PB_ENGINE" flag:"engine"`
	Binary string `mapstructure:"binary" valid:"required" default:"docker" env:"PB_ENGINE_BINARY" flag:"engine binary"`
	API    string `mapstructure:"api" default:"" env:"PB_DOCKER_API" flag:"docker api"`
}

type Logging struct {
	Level  string `mapstructure:"level" valid:"in(debug|info|warn|error),required" default:"info" env:"PB_LOG_LEVEL" flag:"log level"`
	Output string `mapstructure:"output" valid:"in(split|stdout|stderr),required" default:"split" env:"PB_LOG_OUTPUT"`
}

// Config the application's configuration
type Config struct {
	Log    Logging `mapstructure:"log"`
	Image  Image   `mapstructure:"image"`
	Bundle Bundle  `mapstructure:"bundle"`
	Engine Engine  `mapstructure:"engine"`
}

// Ref is the name:tag of the image
func (i *Image) Ref() string {
	return i.Name + ":" + i.Version
}

// Keys returns the prefixed names of the agent variables
func (b *Bundle) Keys() []string {
	keys := make([]string, 0, len(AgentKeys))
	for _, k := range AgentKeys {
		keys = append(keys, b.KeyPrefix+k)
	}
	return keys
}
