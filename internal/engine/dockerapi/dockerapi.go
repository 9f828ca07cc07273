package dockerapi

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	config "partnerbundle/internal/config"
	engine "partnerbundle/internal/engine"
	log "partnerbundle/internal/log"

	dockertypes "github.com/docker/docker/api/types"
	dockerignore "github.com/docker/docker/builder/dockerignore"
	docker "github.com/docker/docker/client"
	archive "github.com/docker/docker/pkg/archive"
	jsonmessage "github.com/moby/moby/pkg/jsonmessage"
	term "github.com/moby/term"
	progressbar "github.com/schollz/progressbar/v3"
)

func init() {
	// Register this Driver
	engine.RegisterEngineDriver("api", &DockerAPI{})
}

// Dockerfile name used when the Dockerfile lives outside the build context
const InjectedDockerfile = ".partnerbundle.Dockerfile"

const dockerignoreFile = ".dockerignore"

// DockerClient is the part of the docker API this driver uses
type DockerClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options dockertypes.ImageBuildOptions) (dockertypes.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (dockertypes.ImageInspect, []byte, error)
	ImageSave(ctx context.Context, imageIDs []string) (io.ReadCloser, error)
	Close() error
}

type DockerAPI struct {
	cli    DockerClient
	log    log.Logger
	output io.Writer
}

func (d *DockerAPI) New(c *config.Config, l log.Logger) (engine.Engine, error) {
	opts := []docker.Opt{docker.FromEnv, docker.WithAPIVersionNegotiation()}
	if c.Engine.API != "" {
		opts = append(opts, docker.WithHost(c.Engine.API))
	}
	cli, err := docker.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("Unable to get connection with Docker: %s", err.Error())
	}
	l.Debugf("Connected with Docker server at '%s' running version %s", cli.DaemonHost(), cli.ClientVersion())
	return NewWithClient(cli, l, os.Stdout), nil
}

// NewWithClient returns an engine on top of an existing client
func NewWithClient(cli DockerClient, l log.Logger, output io.Writer) *DockerAPI {
	return &DockerAPI{
		cli:    cli,
		log:    l,
		output: output,
	}
}

func (d *DockerAPI) Close() error {
	return d.cli.Close()
}

// buildContext tars the source folder honouring .dockerignore and req.Exclude;
// a Dockerfile outside the source gets injected
func (d *DockerAPI) buildContext(req *engine.BuildRequest) (io.ReadCloser, string, error) {
	excludes, err := readDockerignore(req.Source)
	if err != nil {
		return nil, "", err
	}
	excludes = append(excludes, ".git")
	for _, p := range req.Exclude {
		if rel, ok := within(req.Source, p); ok {
			excludes = append(excludes, rel)
		}
	}
	dockerfile, inside := within(req.Source, req.Dockerfile)
	var content []byte
	if inside {
		excludes = append(excludes, "!"+dockerfile)
	} else {
		dockerfile = InjectedDockerfile
		if content, err = os.ReadFile(req.Dockerfile); err != nil {
			return nil, "", fmt.Errorf("Unable to read Dockerfile '%s': %s", req.Dockerfile, err.Error())
		}
	}
	excludes = append(excludes, "!"+dockerignoreFile)
	d.log.Infof("Packaging build context dir '%s' ...", req.Source)
	d.log.Debugf("Build context exclusions: %s", strings.Join(excludes, ", "))
	tarcontext, err := archive.TarWithOptions(req.Source, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return nil, "", fmt.Errorf("Unable to package build context '%s': %s", req.Source, err.Error())
	}
	if !inside {
		now := time.Now()
		tarcontext = archive.ReplaceFileTarWrapper(tarcontext, map[string]archive.TarModifierFunc{
			InjectedDockerfile: func(_ string, _ *tar.Header, _ io.Reader) (*tar.Header, []byte, error) {
				header := &tar.Header{
					Name:     InjectedDockerfile,
					Mode:     0644,
					ModTime:  now,
					Typeflag: tar.TypeReg,
				}
				return header, content, nil
			},
		})
	}
	return tarcontext, dockerfile, nil
}

// readDockerignore returns the patterns of the .dockerignore in src, if any
func readDockerignore(src string) ([]string, error) {
	f, err := os.Open(filepath.Join(src, dockerignoreFile))
	if os.IsNotExist(err) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("Unable to read %s: %s", dockerignoreFile, err.Error())
	}
	defer f.Close()
	patterns, err := dockerignore.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("Unable to parse %s: %s", dockerignoreFile, err.Error())
	}
	return patterns, nil
}

// within returns path relative to base, slash separated, when it is below base
func within(base, path string) (string, bool) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (d *DockerAPI) Build(ctx context.Context, req *engine.BuildRequest) (id string, err error) {
	tarcontext, dockerfile, err := d.buildContext(req)
	if err != nil {
		return "", err
	}
	defer tarcontext.Close()
	imageBuildOptions := dockertypes.ImageBuildOptions{
		Remove:         true,
		ForceRemove:    true,
		SuppressOutput: false,
		Dockerfile:     dockerfile,
		Tags:           []string{req.Ref},
		Labels:         req.Labels,
		Platform:       req.Platform,
	}
	d.log.Infof("Building docker image '%s' ...", req.Ref)
	buildResponse, err := d.cli.ImageBuild(ctx, tarcontext, imageBuildOptions)
	if err != nil {
		return "", fmt.Errorf("Unable to build image '%s': %s", req.Ref, err.Error())
	}
	defer buildResponse.Body.Close()
	if err = d.displayJSONMessagesStream(buildResponse.Body, d.output); err != nil {
		return "", fmt.Errorf("Docker build error: %s", err.Error())
	}
	// Get image details - this will check if image build was successful
	image, _, err := d.cli.ImageInspectWithRaw(ctx, req.Ref)
	if err != nil {
		return "", fmt.Errorf("Image build not completed: %s", err.Error())
	}
	d.log.Debugf("Image '%s' built for %s/%s", req.Ref, image.Os, image.Architecture)
	return image.ID, nil
}

func (d *DockerAPI) Save(ctx context.Context, ref, tarfile string) (err error) {
	target, err := os.OpenFile(tarfile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("Unable to create image archive '%s': %s", tarfile, err.Error())
	}
	defer target.Close()
	saveResponse, err := d.cli.ImageSave(ctx, []string{ref})
	if err != nil {
		return fmt.Errorf("Unable to save image '%s': %s", ref, err.Error())
	}
	defer saveResponse.Close()
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(d.output),
		progressbar.OptionSetDescription("Saving "+ref),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	written, err := io.Copy(io.MultiWriter(target, bar), saveResponse)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("Unable to write image archive '%s': %s", tarfile, err.Error())
	}
	d.log.Debugf("Image '%s' saved to '%s': %d bytes", ref, tarfile, written)
	return target.Close()
}

// displayJSONMessagesStream displays a json message stream from `in` to `out`
func (d *DockerAPI) displayJSONMessagesStream(in io.Reader, out io.Writer) error {
	_, isTerminal := term.GetFdInfo(out)
	dec := json.NewDecoder(in)
	status := ""
	progress := false
	print := func(msg string) {
		if out != nil {
			fmt.Fprint(out, msg)
		}
	}
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("Error decoding Docker API message: %s", err.Error())
		}
		if jm.Error != nil {
			if jm.Error.Code == 401 {
				return fmt.Errorf("Docker API authentication error: %s", jm.ErrorMessage)
			}
			return jm.Error
		}
		if stream := strings.TrimSpace(jm.Stream); stream != "" {
			d.log.Debug(stream)
			if strings.HasPrefix(stream, "Step ") || strings.HasPrefix(stream, "Successfully") {
				print(stream + "\n")
			}
		}
		if jm.Status != "" {
			if isTerminal {
				if jm.Status != status && progress {
					progress = false
					print("\n")
				}
				if jm.ProgressMessage != "" {
					print(jm.Status + " " + jm.ProgressMessage + "\r")
					progress = true
				}
			} else if jm.Status != status {
				d.log.Debug(jm.Status)
			}
			status = jm.Status
		}
		if jm.Aux != nil {
			var result dockertypes.BuildResult
			if err := json.Unmarshal(*jm.Aux, &result); err != nil {
				return fmt.Errorf("Failed to parse AUX message: %s", err.Error())
			}
			d.log.Debug("Image checksum " + result.ID)
		}
	}
	if progress {
		print("\n")
	}
	return nil
}
