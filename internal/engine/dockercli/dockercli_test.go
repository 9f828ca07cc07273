package dockercli

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	config "partnerbundle/internal/config"
	engine "partnerbundle/internal/engine"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker records its arguments and mimics build, image inspect and save
const fakeDocker = `#!/bin/sh
echo "$@" >> "$(dirname "$0")/calls.log"
case "$1" in
  build)
    echo "Successfully built 1234"
    ;;
  image)
    echo "sha256:1234"
    ;;
  save)
    printf 'image layers' > "$3"
    ;;
  fail)
    echo "something broke" >&2
    exit 3
    ;;
  sleep)
    sleep 30
    ;;
esac
`

func setup(t *testing.T) (*DockerCLI, string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed, skipping test")
	}
	dir := t.TempDir()
	binary := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(binary, []byte(fakeDocker), 0755))
	l, _ := logtest.NewNullLogger()
	return NewWithBinary(binary, l), dir
}

func calls(t *testing.T, dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, "calls.log"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestBuild(t *testing.T) {
	d, dir := setup(t)
	id, err := d.Build(context.Background(), &engine.BuildRequest{
		Ref:        "zoo-node:latest",
		Dockerfile: "docker-build/Dockerfile",
		Source:     ".",
		Platform:   "linux/amd64",
		Labels: map[string]string{
			"org.opencontainers.image.version": "latest",
			"org.opencontainers.image.title":   "zoo-node",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "sha256:1234", id)
	assert.Equal(t, []string{
		"build --tag zoo-node:latest --file docker-build/Dockerfile --platform linux/amd64 " +
			"--label org.opencontainers.image.title=zoo-node --label org.opencontainers.image.version=latest .",
		"image inspect --format {{.Id}} zoo-node:latest",
	}, calls(t, dir))
}

func TestSave(t *testing.T) {
	d, dir := setup(t)
	archive := filepath.Join(dir, "zoo-node.tar")
	require.NoError(t, d.Save(context.Background(), "zoo-node:latest", archive))
	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, "image layers", string(data))
}

func TestSaveNeverOverwrites(t *testing.T) {
	d, dir := setup(t)
	archive := filepath.Join(dir, "zoo-node.tar")
	require.NoError(t, os.WriteFile(archive, []byte("previous"), 0644))
	assert.Error(t, d.Save(context.Background(), "zoo-node:latest", archive))
	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	// the engine binary was never called
	_, err = os.Stat(filepath.Join(dir, "calls.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunFailure(t *testing.T) {
	d, _ := setup(t)
	_, err := d.run(context.Background(), "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 3")
	assert.Contains(t, err.Error(), "something broke")
}

func TestRunCancelled(t *testing.T) {
	d, _ := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := d.run(ctx, "sleep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Less(t, time.Since(start), 20*time.Second)
}

func TestNewMissingBinary(t *testing.T) {
	l, _ := logtest.NewNullLogger()
	c := &config.Config{Engine: config.Engine{Binary: "definitely-not-a-container-engine"}}
	_, err := (&DockerCLI{}).New(c, l)
	assert.Error(t, err)
}
