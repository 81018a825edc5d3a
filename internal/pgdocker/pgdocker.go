// Package pgdocker runs a one-off Postgres Docker container so pgquery can
// check query files against a real database.
package pgdocker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerClient "github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4"
	"github.com/jschaf/pgquery/internal/errs"
	"github.com/jschaf/pgquery/internal/ports"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"text/template"
	"time"
)

// DefaultImage is the Postgres image used when Options.Image is empty.
const DefaultImage = "postgres:13"

// Options configure the Postgres container.
type Options struct {
	// Image is the base Postgres image. Defaults to DefaultImage.
	Image string
	// InitScripts are SQL files run in order when the database starts, like
	// schema files.
	InitScripts []string
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// StartTimeout is how long to wait for Postgres to accept connections.
	// Defaults to 10 seconds.
	StartTimeout time.Duration
}

// Client is a client to control the running Postgres Docker container.
type Client struct {
	docker      *dockerClient.Client
	log         *zap.Logger
	containerID string // container ID if started, empty otherwise
	connString  string
}

// Start builds a Docker image and runs the image in a container. The caller
// must call Stop when done.
func Start(ctx context.Context, opts Options) (client *Client, mErr error) {
	now := time.Now()
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = 10 * time.Second
	}
	dockerCl, err := dockerClient.NewClientWithOpts(dockerClient.FromEnv, dockerClient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	c := &Client{docker: dockerCl, log: opts.Logger.Named("pgdocker")}
	imageID, err := c.buildImage(ctx, opts.Image, opts.InitScripts)
	if err != nil {
		return nil, fmt.Errorf("build image: %w", err)
	}
	c.log.Debug("built image", zap.String("image_id", imageID))
	containerID, port, err := c.runContainer(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("run container: %w", err)
	}
	c.containerID = containerID
	// Enrich errors with the container logs and remove the container.
	defer func() {
		if mErr == nil {
			return
		}
		if logs, err := c.ContainerLogs(); err != nil {
			mErr = multierr.Append(mErr, err)
		} else {
			mErr = fmt.Errorf("%w\ncontainer logs for container ID %s\n\n%s", mErr, containerID, logs)
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Stop(stopCtx); err != nil {
			c.log.Error("stop postgres container", zap.Error(err))
		}
	}()

	c.connString = fmt.Sprintf("host=0.0.0.0 port=%d user=postgres", port)
	if err := c.waitIsReady(ctx, opts.StartTimeout); err != nil {
		return nil, fmt.Errorf("wait for postgres to be ready: %w", err)
	}
	c.log.Debug("started docker postgres", zap.Duration("start_duration", time.Since(now)))
	return c, nil
}

// ContainerLogs returns all stderr and stdout logs for the container.
func (c *Client) ContainerLogs() (logs string, mErr error) {
	if c.containerID == "" {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	logsR, err := c.docker.ContainerLogs(ctx, c.containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("get container logs: %w", err)
	}
	defer errs.Capture(&mErr, logsR.Close, "close container logs")
	bs, err := io.ReadAll(logsR)
	if err != nil {
		return "", fmt.Errorf("read all container logs: %w", err)
	}
	return string(bs), nil
}

// renderDockerfile renders the Dockerfile copying each init script, named by
// tarNames, into the Postgres entrypoint directory.
func renderDockerfile(image string, tarNames []string) ([]byte, error) {
	tmpl, err := template.New("pgdocker").Parse(dockerfileTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse dockerfile template: %w", err)
	}
	buf := &bytes.Buffer{}
	err = tmpl.ExecuteTemplate(buf, "dockerfile", pgTemplate{Image: image, InitScripts: tarNames})
	if err != nil {
		return nil, fmt.Errorf("execute dockerfile template: %w", err)
	}
	return buf.Bytes(), nil
}

// initTarNames prefixes each script with its index so the Postgres entrypoint
// runs them in the given order.
func initTarNames(scripts []string) []string {
	names := make([]string, len(scripts))
	for i, script := range scripts {
		names[i] = fmt.Sprintf("%03d_%s", i, filepath.Base(script))
	}
	return names
}

// buildImage creates a new Postgres Docker image with the given init scripts
// copied into the Postgres entry point.
func (c *Client) buildImage(ctx context.Context, image string, initScripts []string) (id string, mErr error) {
	tarNames := initTarNames(initScripts)
	dockerfile, err := renderDockerfile(image, tarNames)
	if err != nil {
		return "", err
	}
	c.log.Debug("rendered dockerfile", zap.ByteString("dockerfile", dockerfile))

	// Tar the Dockerfile and init scripts for the build context.
	tarBuf := &bytes.Buffer{}
	tarW := tar.NewWriter(tarBuf)
	hdr := &tar.Header{Name: "Dockerfile", Mode: 0644, Size: int64(len(dockerfile))}
	if err := tarW.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("write dockerfile tar header: %w", err)
	}
	if _, err := tarW.Write(dockerfile); err != nil {
		return "", fmt.Errorf("write dockerfile to tar: %w", err)
	}
	for i, script := range initScripts {
		if err := tarInitScript(tarW, script, tarNames[i]); err != nil {
			return "", fmt.Errorf("tar init script: %w", err)
		}
	}
	if err := tarW.Close(); err != nil {
		return "", fmt.Errorf("close build context tar: %w", err)
	}

	resp, err := c.docker.ImageBuild(ctx, bytes.NewReader(tarBuf.Bytes()), types.ImageBuildOptions{
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("build postgres docker image: %w", err)
	}
	defer errs.Capture(&mErr, resp.Body.Close, "close image build response")
	response, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read image build response: %w", err)
	}
	return parseImageID(response)
}

var imageIDRegexp = regexp.MustCompile(`Successfully built ([a-z0-9]+)`)

// parseImageID finds the built image ID in the docker build output.
func parseImageID(output []byte) (string, error) {
	matches := imageIDRegexp.FindSubmatch(output)
	if len(matches) == 0 {
		return "", fmt.Errorf("unable to find image ID in docker build output below:\n%s", output)
	}
	return string(matches[1]), nil
}

// tarInitScript writes the contents of an init script into the tar writer
// using tarName.
func tarInitScript(tarW *tar.Writer, script string, tarName string) (mErr error) {
	stat, err := os.Stat(script)
	if err != nil {
		return fmt.Errorf("stat postgres init script %s: %w", script, err)
	}
	hdr, err := tar.FileInfoHeader(stat, tarName)
	if err != nil {
		return fmt.Errorf("create tar file header: %w", err)
	}
	hdr.Name = tarName
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.ModTime = time.Time{}
	if err := tarW.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write init script tar header: %w", err)
	}
	f, err := os.Open(script)
	if err != nil {
		return fmt.Errorf("open init script: %w", err)
	}
	defer errs.Capture(&mErr, f.Close, "close init script")
	if _, err := io.Copy(tarW, f); err != nil {
		return fmt.Errorf("copy init script to tar: %w", err)
	}
	return nil
}

// runContainer creates and starts a new Postgres container using imageID.
// The postgres port is mapped to an available port on the host system.
func (c *Client) runContainer(ctx context.Context, imageID string) (string, ports.Port, error) {
	port, err := ports.FindAvailable()
	if err != nil {
		return "", 0, fmt.Errorf("find available port: %w", err)
	}
	containerCfg := &container.Config{
		Image:        imageID,
		Env:          []string{"POSTGRES_HOST_AUTH_METHOD=trust"},
		ExposedPorts: nat.PortSet{"5432/tcp": struct{}{}},
		Cmd:          []string{"postgres", "-c", "fsync=off", "-c", "full_page_writes=off"},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			"5432/tcp": []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(port)}},
		},
		Tmpfs: map[string]string{"/var/lib/postgresql/data": ""},
	}
	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", 0, fmt.Errorf("create container: %w", err)
	}
	c.log.Debug("created postgres container", zap.String("container_id", resp.ID), zap.Int("port", port))
	if err := c.docker.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", 0, fmt.Errorf("start container: %w", err)
	}
	c.log.Debug("started container", zap.String("container_id", resp.ID))
	return resp.ID, port, nil
}

// waitIsReady waits until we can connect to the database.
func (c *Client) waitIsReady(ctx context.Context, timeout time.Duration) error {
	cfg, err := pgx.ParseConfig(c.connString + " connect_timeout=1")
	if err != nil {
		return fmt.Errorf("parse conn string: %w", err)
	}
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			return fmt.Errorf("postgres didn't start up within %s", timeout)
		case <-ctx.Done():
			return fmt.Errorf("postgres didn't start up before context expired: %w", ctx.Err())
		default:
		}
		debounce := time.After(200 * time.Millisecond)
		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err == nil {
			if err := conn.Close(ctx); err != nil {
				c.log.Debug("close postgres connection", zap.Error(err))
			}
			return nil
		}
		c.log.Debug("attempted connection", zap.Error(err))
		<-debounce
	}
}

// ConnString returns the connection string to connect to the started Postgres
// Docker container.
func (c *Client) ConnString() (string, error) {
	if c.connString == "" {
		return "", fmt.Errorf("conn string not set; did postgres start correctly")
	}
	return c.connString, nil
}

// Stop stops and removes the running container, if any, and closes the
// docker client.
func (c *Client) Stop(ctx context.Context) (mErr error) {
	defer errs.Capture(&mErr, c.docker.Close, "close docker client")
	if c.containerID == "" {
		return nil
	}
	timeout := 3 * time.Second
	if err := c.docker.ContainerStop(ctx, c.containerID, &timeout); err != nil {
		return fmt.Errorf("stop container %s: %w", c.containerID, err)
	}
	err := c.docker.ContainerRemove(ctx, c.containerID, types.ContainerRemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})
	if err != nil {
		return fmt.Errorf("remove container %s: %w", c.containerID, err)
	}
	c.log.Debug("removed postgres container", zap.String("container_id", c.containerID))
	c.containerID = ""
	return nil
}
