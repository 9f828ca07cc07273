// Package dockercli drives a docker compatible command line client
// (docker, podman, nerdctl) instead of talking to the daemon API.
package dockercli

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	config "partnerbundle/internal/config"
	engine "partnerbundle/internal/engine"
	fsops "partnerbundle/internal/fsops"
	log "partnerbundle/internal/log"

	gocmd "github.com/go-cmd/cmd"
)

func init() {
	// Register this Driver
	engine.RegisterEngineDriver("cli", &DockerCLI{})
}

// lines of stderr kept in error messages
const stderrTail = 10

type DockerCLI struct {
	binary string
	log    log.Logger
}

func (d *DockerCLI) New(c *config.Config, l log.Logger) (engine.Engine, error) {
	binary, err := exec.LookPath(c.Engine.Binary)
	if err != nil {
		return nil, fmt.Errorf("Container engine '%s' not found: %s", c.Engine.Binary, err.Error())
	}
	l.Debugf("Using container engine binary '%s'", binary)
	return NewWithBinary(binary, l), nil
}

func NewWithBinary(binary string, l log.Logger) *DockerCLI {
	return &DockerCLI{
		binary: binary,
		log:    l,
	}
}

func (d *DockerCLI) Close() error {
	return nil
}

// run executes the binary and returns its stdout lines; ctx cancellation stops it
func (d *DockerCLI) run(ctx context.Context, args ...string) ([]string, error) {
	d.log.Debugf("Running: %s %s", d.binary, strings.Join(args, " "))
	c := gocmd.NewCmdOptions(gocmd.Options{Buffered: true}, d.binary, args...)
	statusChan := c.Start()
	var status gocmd.Status
	select {
	case status = <-statusChan:
	case <-ctx.Done():
		c.Stop()
		<-statusChan
		return nil, fmt.Errorf("'%s %s' cancelled: %s", d.binary, args[0], ctx.Err())
	}
	for _, line := range status.Stdout {
		d.log.Debug(line)
	}
	if status.Error != nil {
		return status.Stdout, fmt.Errorf("Unable to run '%s %s': %s", d.binary, args[0], status.Error.Error())
	}
	if status.Exit != 0 {
		stderr := status.Stderr
		if len(stderr) > stderrTail {
			stderr = stderr[len(stderr)-stderrTail:]
		}
		return status.Stdout, fmt.Errorf("'%s %s' exited with status %d: %s", d.binary, args[0], status.Exit, strings.Join(stderr, "\n"))
	}
	return status.Stdout, nil
}

func (d *DockerCLI) Build(ctx context.Context, req *engine.BuildRequest) (string, error) {
	args := []string{"build", "--tag", req.Ref, "--file", req.Dockerfile}
	if req.Platform != "" {
		args = append(args, "--platform", req.Platform)
	}
	keys := make([]string, 0, len(req.Labels))
	for k := range req.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+req.Labels[k])
	}
	args = append(args, req.Source)
	d.log.Infof("Building image '%s' with %s ...", req.Ref, d.binary)
	if _, err := d.run(ctx, args...); err != nil {
		return "", err
	}
	out, err := d.run(ctx, "image", "inspect", "--format", "{{.Id}}", req.Ref)
	if err != nil {
		return "", fmt.Errorf("Image build not completed: %s", err.Error())
	}
	if len(out) == 0 {
		return "", fmt.Errorf("Image build not completed: no id for '%s'", req.Ref)
	}
	return strings.TrimSpace(out[0]), nil
}

func (d *DockerCLI) Save(ctx context.Context, ref, archive string) error {
	// docker save --output truncates an existing file
	exists, err := fsops.Exists(archive)
	if err != nil {
		return err
	} else if exists {
		return fmt.Errorf("Image archive '%s' already exists", archive)
	}
	d.log.Infof("Saving image '%s' with %s ...", ref, d.binary)
	_, err = d.run(ctx, "save", "--output", archive, ref)
	return err
}
