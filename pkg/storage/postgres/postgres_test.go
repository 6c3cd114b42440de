package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rhuss/reqstate/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman when docker is absent.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		if _, err := exec.LookPath("docker"); err == nil {
			return
		}
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
		// Ryuk needs privileged mode with podman.
		if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
			os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
		}
	}
}

// containerRuntime names the container runtime testcontainers would talk
// to, or "" when there is none.
func containerRuntime(lookPath func(string) (string, error), getenv func(string) string) string {
	if getenv("DOCKER_HOST") != "" {
		return "docker-host"
	}
	for _, name := range []string{"docker", "podman"} {
		if _, err := lookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func TestContainerRuntime(t *testing.T) {
	notFound := func(string) (string, error) { return "", exec.ErrNotFound }
	only := func(want string) func(string) (string, error) {
		return func(name string) (string, error) {
			if name == want {
				return "/usr/bin/" + name, nil
			}
			return "", exec.ErrNotFound
		}
	}
	noEnv := func(string) string { return "" }

	tests := []struct {
		name     string
		lookPath func(string) (string, error)
		getenv   func(string) string
		want     string
	}{
		{"none", notFound, noEnv, ""},
		{"docker", only("docker"), noEnv, "docker"},
		{"podman", only("podman"), noEnv, "podman"},
		{"docker host", notFound, func(k string) string {
			if k == "DOCKER_HOST" {
				return "unix:///run/podman.sock"
			}
			return ""
		}, "docker-host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containerRuntime(tt.lookPath, tt.getenv); got != tt.want {
				t.Errorf("containerRuntime() = %q, want %q", got, tt.want)
			}
		})
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}

	if containerRuntime(exec.LookPath, os.Getenv) == "" {
		t.Skip("neither docker nor podman found, skipping PostgreSQL integration tests")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("reqstate_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is docker or podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func uniqueNonce(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPendingMigrationsOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_late.sql":   {Data: []byte("SELECT 1")},
		"migrations/002_second.sql": {Data: []byte("SELECT 1")},
		"migrations/001_first.sql":  {Data: []byte("SELECT 1")},
		"migrations/README.md":      {Data: []byte("docs")},
		"migrations/abc_bad.sql":    {Data: []byte("SELECT 1")},
		"migrations/noversion.sql":  {Data: []byte("SELECT 1")},
	}

	got, err := pendingMigrations(fsys)
	if err != nil {
		t.Fatalf("pendingMigrations error: %v", err)
	}
	want := []migration{
		{1, "001_first.sql"},
		{2, "002_second.sql"},
		{10, "010_late.sql"},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(migration{})); diff != "" {
		t.Errorf("migrations mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := pendingMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("pendingMigrations error: %v", err)
	}
	if len(got) == 0 || got[0].version != 1 {
		t.Errorf("embedded migrations = %v, want version 1 first", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{MaxConns: 1}
	c.defaults()
	if c.MinConns != 1 {
		t.Errorf("MinConns = %d, want clamped to 1", c.MinConns)
	}
	if c.MaxConnLifetime != 5*time.Minute {
		t.Errorf("MaxConnLifetime = %v", c.MaxConnLifetime)
	}
}

func TestPostgres_Advance(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	nonce := uniqueNonce("adv")

	steps := []struct {
		nc   uint64
		want bool
	}{
		{1, true},
		{1, false},
		{5, true},
		{4, false},
		{6, true},
	}
	for _, st := range steps {
		got, err := store.Advance(ctx, nonce, st.nc)
		if err != nil {
			t.Fatalf("Advance(%d) error: %v", st.nc, err)
		}
		if got != st.want {
			t.Errorf("Advance(%d) = %v, want %v", st.nc, got, st.want)
		}
	}
}

func TestPostgres_AdvanceInvalid(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if _, err := store.Advance(ctx, "", 1); !errors.Is(err, storage.ErrInvalidNonce) {
		t.Errorf("empty nonce: got %v", err)
	}
	if _, err := store.Advance(ctx, "n", 1<<63); !errors.Is(err, storage.ErrInvalidNonce) {
		t.Errorf("overflowing count: got %v", err)
	}
}

func TestPostgres_ConcurrentAdvance(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	nonce := uniqueNonce("race")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Advance(ctx, nonce, 1)
			if err != nil {
				t.Errorf("Advance error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("nc=1 accepted %d times, want exactly once", accepted)
	}
}

func TestPostgres_Purge(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	nonce := uniqueNonce("purge")

	if _, err := store.Advance(ctx, nonce, 1); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	n, err := store.Purge(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d fresh counters", n)
	}

	n, err = store.Purge(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if n < 1 {
		t.Errorf("purged %d, want at least 1", n)
	}

	if ok, _ := store.Advance(ctx, nonce, 1); !ok {
		t.Error("purged nonce should start over")
	}
}

func TestPostgres_MigrateTwice(t *testing.T) {
	store := setupTestDB(t)
	if err := store.migrate(context.Background()); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
