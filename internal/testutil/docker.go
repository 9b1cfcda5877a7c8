package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Labels stamped on every container a test starts. TestLabel carries the
// test name, RunLabel a random id unique to one NewPostgresTarget call.
const (
	TestLabel = "claimdoc.test"
	RunLabel  = "claimdoc.test.run"
)

// TestingT is the part of testing.T the Docker helpers use.
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Helper()
}

// PostgresTarget names a throwaway Postgres container for one test.
type PostgresTarget struct {
	Name     string
	HostPort string
	Labels   map[string]string
}

// DockerClient returns a client for the local daemon, or skips the test
// when none answers.
func DockerClient(t TestingT) *client.Client {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		t.Skipf("docker is not running: %v", err)
		return nil
	}
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

// NewPostgresTarget picks a container name, a free host port and labels for
// a Postgres container, and removes whatever carries those labels when the
// test ends, even if the test never got to clean up itself.
func NewPostgresTarget(t TestingT, cli *client.Client) PostgresTarget {
	t.Helper()

	port, err := FindFreePort()
	if err != nil {
		t.Fatalf("no free port for postgres: %v", err)
	}
	run := randHex(4)
	slug := containerSlug(t.Name())
	target := PostgresTarget{
		Name:     "claimdoc-test-pg-" + slug + "-" + run,
		HostPort: port,
		Labels:   map[string]string{TestLabel: slug, RunLabel: run},
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := removeLabelled(ctx, cli, RunLabel+"="+run)
		if err != nil {
			t.Logf("postgres container cleanup: %v", err)
			return
		}
		for _, name := range removed {
			t.Logf("removed leftover container %s", name)
		}
	})
	return target
}

func removeLabelled(ctx context.Context, cli *client.Client, label string) ([]string, error) {
	args := filters.NewArgs(filters.Arg("label", label))
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, c := range containers {
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return removed, err
		}
		if len(c.Names) > 0 {
			removed = append(removed, strings.TrimPrefix(c.Names[0], "/"))
		}
	}
	return removed, nil
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// containerSlug lowercases a test name into a Docker-safe name component.
func containerSlug(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '/' || r == '_' || r == '-':
			return '-'
		}
		return -1
	}, name)
	if len(slug) > 30 {
		slug = slug[:30]
	}
	return strings.Trim(slug, "-")
}
