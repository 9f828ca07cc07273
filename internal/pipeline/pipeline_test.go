package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	config "partnerbundle/internal/config"
	engine "partnerbundle/internal/engine"
	tar "partnerbundle/pkg/tar"

	"github.com/joho/godotenv"
	logrus "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	builds  []*engine.BuildRequest
	saves   int
	saveErr error
}

func (f *fakeEngine) Build(ctx context.Context, req *engine.BuildRequest) (string, error) {
	f.builds = append(f.builds, req)
	return "sha256:1234", nil
}

func (f *fakeEngine) Save(ctx context.Context, ref, archive string) error {
	f.saves++
	file, err := os.OpenFile(archive, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	if f.saveErr != nil {
		file.WriteString("partial")
		return f.saveErr
	}
	_, err = file.WriteString("image " + ref)
	return err
}

func (f *fakeEngine) Close() error { return nil }

const composeFile = `services:
  zoo-node:
    image: zoo-node:latest
    env_file: .env
    environment:
      - INITIAL_AGENT_NAMES=gpt
      - INITIAL_AGENT_URLS=https://api.openai.com
      - INITIAL_AGENT_MODELS=openai:gpt-4o-mini
      - INITIAL_AGENT_API_KEYS=sk-secret
`

type fixture struct {
	dir    string
	config *config.Config
	engine *fakeEngine
	hook   *logtest.Hook
	p      *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "docker-build"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "docker-build", "Dockerfile"), []byte("FROM scratch\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "docker-build", "docker-compose.yml"), []byte(composeFile), 0644))
	c := &config.Config{
		Image: config.Image{
			Name:       "zoo-node",
			Version:    "latest",
			Dockerfile: filepath.Join(dir, "src", "docker-build", "Dockerfile"),
			Source:     filepath.Join(dir, "src"),
		},
		Bundle: config.Bundle{
			Compose:   filepath.Join(dir, "src", "docker-build", "docker-compose.yml"),
			Archive:   "zoo-node.tar",
			Working:   filepath.Join(dir, "zoo-partner"),
			Output:    filepath.Join(dir, "partner-release"),
			KeyPrefix: "INITIAL_",
			UIURL:     "http://localhost:9550",
		},
		Engine: config.Engine{Driver: "api", Binary: "docker"},
	}
	l, hook := logtest.NewNullLogger()
	e := &fakeEngine{}
	return &fixture{dir: dir, config: c, engine: e, hook: hook, p: New(c, e, l)}
}

func (f *fixture) errors() []string {
	result := []string{}
	for _, e := range f.hook.AllEntries() {
		if e.Level <= logrus.ErrorLevel {
			result = append(result, e.Message)
		}
	}
	return result
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func kindOf(t *testing.T, err error) (Stage, Kind) {
	t.Helper()
	var se *StageError
	require.True(t, errors.As(err, &se), "not a stage error: %v", err)
	return se.Stage, se.Kind
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.p.Run(context.Background(), Build))

	l := f.p.Layout()
	assert.Equal(t, filepath.Join(f.dir, "partner-release", "zoo-partner.tar.gz"), l.Package)
	assert.False(t, exists(l.Working))
	assert.Empty(t, f.errors())
	require.Len(t, f.engine.builds, 1)
	assert.Equal(t, "zoo-node:latest", f.engine.builds[0].Ref)
	assert.Equal(t, "latest", f.engine.builds[0].Labels["org.opencontainers.image.version"])
	assert.Equal(t, []string{f.p.Layout().Working, f.p.Layout().Output}, f.engine.builds[0].Exclude)

	outputs, err := os.ReadDir(filepath.Join(f.dir, "partner-release"))
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	extract := filepath.Join(f.dir, "extract")
	require.NoError(t, tar.UnTarGzFile(context.Background(), l.Package, extract))
	top, err := os.ReadDir(extract)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "zoo-partner", top[0].Name())

	entries, err := os.ReadDir(filepath.Join(extract, "zoo-partner"))
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{".env", "docker-compose.yml", "partner_setup.sh", "zoo-node.tar"}, names)

	env, err := godotenv.Read(filepath.Join(extract, "zoo-partner", ".env"))
	require.NoError(t, err)
	assert.Len(t, env, 4)
	for _, k := range f.config.Bundle.Keys() {
		v, ok := env[k]
		assert.True(t, ok, k)
		assert.Empty(t, v, k)
	}

	compose, err := os.ReadFile(filepath.Join(extract, "zoo-partner", "docker-compose.yml"))
	require.NoError(t, err)
	for _, k := range f.config.Bundle.Keys() {
		assert.Equal(t, 1, strings.Count(string(compose), "${"+k+"}"), k)
	}
	image, err := os.ReadFile(filepath.Join(extract, "zoo-partner", "zoo-node.tar"))
	require.NoError(t, err)
	assert.Equal(t, "image zoo-node:latest", string(image))
}

func TestMissingDockerfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.config.Image.Dockerfile))

	err := f.p.Run(context.Background(), Build)
	require.Error(t, err)
	stage, kind := kindOf(t, err)
	assert.Equal(t, Build, stage)
	assert.Equal(t, MissingPrecondition, kind)
	assert.Len(t, f.errors(), 1)
	assert.False(t, exists(f.p.Layout().Working))
	assert.Empty(t, f.engine.builds)
}

func TestSaveGuard(t *testing.T) {
	f := newFixture(t)
	l := f.p.Layout()
	require.NoError(t, os.MkdirAll(l.Working, 0755))
	require.NoError(t, os.WriteFile(l.ImageTar, []byte("first run archive"), 0644))

	err := f.p.Run(context.Background(), Save)
	require.Error(t, err)
	stage, kind := kindOf(t, err)
	assert.Equal(t, Save, stage)
	assert.Equal(t, IdempotencyGuard, kind)
	assert.Len(t, f.errors(), 1)
	assert.Equal(t, 0, f.engine.saves)
	data, err := os.ReadFile(l.ImageTar)
	require.NoError(t, err)
	assert.Equal(t, "first run archive", string(data))
	assert.False(t, exists(l.Package))
}

func TestSaveWithoutBundleFolder(t *testing.T) {
	f := newFixture(t)
	err := f.p.RunStage(context.Background(), Save)
	require.Error(t, err)
	_, kind := kindOf(t, err)
	assert.Equal(t, MissingPrecondition, kind)
}

func TestSaveFailureRemovesPartialArchive(t *testing.T) {
	f := newFixture(t)
	f.engine.saveErr = errors.New("daemon gone")
	require.NoError(t, os.MkdirAll(f.p.Layout().Working, 0755))

	err := f.p.RunStage(context.Background(), Save)
	require.Error(t, err)
	_, kind := kindOf(t, err)
	assert.Equal(t, Failure, kind)
	assert.Contains(t, err.Error(), "daemon gone")
	assert.False(t, exists(f.p.Layout().ImageTar))
}

func TestCleanIdempotent(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.p.RunStage(context.Background(), Clean))
	require.NoError(t, os.MkdirAll(filepath.Join(f.p.Layout().Working, "sub"), 0755))
	assert.NoError(t, f.p.RunStage(context.Background(), Clean))
	assert.False(t, exists(f.p.Layout().Working))
	assert.NoError(t, f.p.RunStage(context.Background(), Clean))
}

func TestDoubleRunKeepsFirstPackage(t *testing.T) {
	f := newFixture(t)
	f.config.Bundle.Keep = true
	require.NoError(t, f.p.Run(context.Background(), Build))
	l := f.p.Layout()
	assert.True(t, exists(l.Working))
	first, err := os.ReadFile(l.Package)
	require.NoError(t, err)

	err = f.p.Run(context.Background(), Build)
	require.Error(t, err)
	stage, kind := kindOf(t, err)
	assert.Equal(t, Save, stage)
	assert.Equal(t, IdempotencyGuard, kind)
	second, err := os.ReadFile(l.Package)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.errors(), 1)
}

func TestComposeMissingKeys(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.config.Bundle.Compose, []byte("services:\n  zoo-node:\n    environment:\n      - INITIAL_AGENT_NAMES=a\n"), 0644))
	require.NoError(t, f.p.RunStage(context.Background(), Compose))

	warnings := 0
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
	for _, p := range []string{f.p.Layout().ComposeCopy, f.p.Layout().EnvSample, f.p.Layout().Loader} {
		assert.True(t, exists(p), p)
	}
	info, err := os.Stat(f.p.Layout().Loader)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)
	// original untouched
	data, err := os.ReadFile(f.config.Bundle.Compose)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INITIAL_AGENT_NAMES=a")
}

func TestComposeMissingFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.config.Bundle.Compose))
	err := f.p.RunStage(context.Background(), Compose)
	require.Error(t, err)
	_, kind := kindOf(t, err)
	assert.Equal(t, MissingPrecondition, kind)
	assert.False(t, exists(f.p.Layout().Working))
}

func TestInvalidPlatform(t *testing.T) {
	f := newFixture(t)
	f.config.Image.Platform = "amd64"
	err := f.p.RunStage(context.Background(), Build)
	require.Error(t, err)
	assert.Empty(t, f.engine.builds)
}

func TestDoneWithoutPackage(t *testing.T) {
	f := newFixture(t)
	err := f.p.RunStage(context.Background(), Done)
	require.Error(t, err)
	stage, kind := kindOf(t, err)
	assert.Equal(t, Done, stage)
	assert.Equal(t, MissingPrecondition, kind)
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages() {
		parsed, err := ParseStage(strings.ToUpper(s.String()))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStage("deploy")
	assert.Error(t, err)
	assert.Equal(t, "PartnerArchiveWritten", Archive.State())
}
