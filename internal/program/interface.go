package program

type ProgramCLI interface {
	Init()
	LoadConfig() error
	GetYamlConfig() ([]byte, error)
	Prepare(from string) error
	ShowLoader() error
	ShowEnv() error
	Inspect() error
}
