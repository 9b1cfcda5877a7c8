// Package pgcontainer runs a local Postgres in Docker for `serve --managed-db`.
package pgcontainer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultImage         = "postgres:16-alpine"
	DefaultContainerName = "claimdoc-postgres"
	DefaultPort          = "5433"
	DefaultUser          = "claimdoc"
	DefaultDatabase      = "claimdoc"
	ContainerPort        = "5432/tcp"
	DataDir              = "/var/lib/postgresql/data"
	Label                = "claimdoc-postgres"

	// ContainerNamePrefix prefixes names derived from a home path.
	ContainerNamePrefix = "claimdoc-postgres-"
)

// ContainerStatus represents the state of the Postgres container.
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusNotFound ContainerStatus = "not_found"
	StatusStarting ContainerStatus = "starting"
)

// Config holds configuration for the container manager.
type Config struct {
	ContainerName string
	// HomePath derives a per-home container name when ContainerName is empty.
	HomePath string
	Image    string
	HostPort string
	User     string
	Password string
	Database string
	// DataPath is bind-mounted as the data directory when set.
	DataPath string
	Labels   map[string]string

	// ReadyTimeout bounds the wait for Postgres to accept connections.
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Manager manages the Postgres container lifecycle.
type Manager struct {
	cli           *client.Client
	containerName string
	imageName     string
	hostPort      string
	user          string
	password      string
	database      string
	dataPath      string
	labels        map[string]string
	readyTimeout  time.Duration
	logger        *slog.Logger
}

// GenerateContainerName derives a stable container name from a home path so
// two homes on one machine never share a database.
func GenerateContainerName(homePath string) string {
	sum := sha256.Sum256([]byte(homePath))
	return ContainerNamePrefix + hex.EncodeToString(sum[:])[:8]
}

// New creates a manager. It does not contact Docker until Start.
func New(cfg Config) (*Manager, error) {
	if cfg.Password == "" {
		return nil, fmt.Errorf("managed database password is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newManager(cli, cfg), nil
}

func newManager(cli *client.Client, cfg Config) *Manager {
	switch {
	case cfg.ContainerName != "":
	case cfg.HomePath != "":
		cfg.ContainerName = GenerateContainerName(cfg.HomePath)
	default:
		cfg.ContainerName = DefaultContainerName
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.HostPort == "" {
		cfg.HostPort = DefaultPort
	}
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	labels := map[string]string{Label: "true"}
	maps.Copy(labels, cfg.Labels)

	return &Manager{
		cli:           cli,
		containerName: cfg.ContainerName,
		imageName:     cfg.Image,
		hostPort:      cfg.HostPort,
		user:          cfg.User,
		password:      cfg.Password,
		database:      cfg.Database,
		dataPath:      cfg.DataPath,
		labels:        labels,
		readyTimeout:  cfg.ReadyTimeout,
		logger:        cfg.Logger,
	}
}

// ContainerName returns the managed container's name.
func (m *Manager) ContainerName() string {
	return m.containerName
}

// DSN returns the connection string for the managed database.
func (m *Manager) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(m.user, m.password),
		Host:     net.JoinHostPort("127.0.0.1", m.hostPort),
		Path:     "/" + m.database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Close closes the Docker client.
func (m *Manager) Close() error {
	return m.cli.Close()
}

// Start starts the container, creating it if needed, and waits until
// Postgres accepts connections.
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
		return m.WaitReady(ctx)
	case StatusStopped:
		m.logger.Info("starting existing postgres container", "name", m.containerName)
		if err := m.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
		return m.WaitReady(ctx)
	case StatusNotFound:
		m.logger.Info("creating postgres container", "name", m.containerName, "image", m.imageName, "port", m.hostPort)
		return m.createAndStart(ctx)
	default:
		return fmt.Errorf("container in unexpected state: %s", status)
	}
}

// Stop stops the container.
func (m *Manager) Stop(ctx context.Context) error {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}

	timeout := 10
	if err := m.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove stops and removes the container and its anonymous volumes.
func (m *Manager) Remove(ctx context.Context) error {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}
	if status == StatusRunning {
		if err := m.Stop(ctx); err != nil {
			return err
		}
	}
	if err := m.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Status returns the current status of the container.
func (m *Manager) Status(ctx context.Context) (ContainerStatus, error) {
	status, _, err := m.getContainerStatus(ctx)
	return status, err
}

// Logs returns the last lines of the container log.
func (m *Manager) Logs(ctx context.Context, tail string) (string, error) {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return "", err
	}
	if status == StatusNotFound {
		return "", fmt.Errorf("container not found")
	}

	logs, err := m.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer logs.Close()

	b, err := io.ReadAll(logs)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return string(b), nil
}

// ValidateExisting checks that an existing container is bound to the
// configured port and data path. A missing container is compatible.
func (m *Manager) ValidateExisting(ctx context.Context) error {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}

	info, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := info.HostConfig.PortBindings[ContainerPort]
	if len(bindings) == 0 {
		return fmt.Errorf("existing container has no port binding for %s", ContainerPort)
	}
	if bound := bindings[0].HostPort; bound != m.hostPort {
		return fmt.Errorf("existing container bound to port %s, expected %s", bound, m.hostPort)
	}

	if m.dataPath != "" {
		found := false
		for _, mnt := range info.Mounts {
			if mnt.Destination != DataDir {
				continue
			}
			if mnt.Source != m.dataPath {
				return fmt.Errorf("existing container mounts %s, expected %s", mnt.Source, m.dataPath)
			}
			found = true
			break
		}
		if !found {
			return fmt.Errorf("existing container has no mount for %s", DataDir)
		}
	}
	return nil
}

// WaitReady polls until Postgres accepts a connection or ReadyTimeout passes.
func (m *Manager) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	defer cancel()

	dsn := m.DSN()
	return retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			conn, err := pgx.Connect(pingCtx, dsn)
			if err != nil {
				return err
			}
			defer conn.Close(context.WithoutCancel(pingCtx))
			return conn.Ping(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(m.readyTimeout.Seconds())),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Debug("waiting for postgres", "attempt", n+1, "error", err)
		}),
	)
}

func (m *Manager) containerEnv() []string {
	return []string{
		"POSTGRES_USER=" + m.user,
		"POSTGRES_PASSWORD=" + m.password,
		"POSTGRES_DB=" + m.database,
	}
}

func (m *Manager) createAndStart(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	containerConfig := &container.Config{
		Image:  m.imageName,
		Env:    m.containerEnv(),
		Labels: m.labels,
		ExposedPorts: nat.PortSet{
			ContainerPort: struct{}{},
		},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "pg_isready", "-U", m.user, "-d", m.database},
			Interval:    2 * time.Second,
			Timeout:     5 * time.Second,
			Retries:     10,
			StartPeriod: 5 * time.Second,
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			ContainerPort: []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: m.hostPort},
			},
		},
	}
	if m.dataPath != "" {
		if err := os.MkdirAll(m.dataPath, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		hostConfig.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: m.dataPath,
			Target: DataDir,
		}}
	}

	resp, err := m.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, m.containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}
	return m.WaitReady(ctx)
}

func (m *Manager) getContainerStatus(ctx context.Context) (ContainerStatus, string, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("name", "^/"+m.containerName+"$")

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return StatusNotFound, "", nil
	}

	c := containers[0]
	switch c.State {
	case "running":
		return StatusRunning, c.ID, nil
	case "exited", "dead":
		return StatusStopped, c.ID, nil
	case "created", "restarting":
		return StatusStarting, c.ID, nil
	default:
		return ContainerStatus(c.State), c.ID, nil
	}
}

func (m *Manager) ensureImage(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.imageName); err == nil {
		return nil
	}

	m.logger.Info("pulling image", "image", m.imageName)
	reader, err := m.cli.ImagePull(ctx, m.imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}
