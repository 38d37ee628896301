package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/convoy/internal/core/marathon"
	"github.com/artpar/convoy/internal/core/registry"
	"github.com/artpar/convoy/internal/core/validation"
	"github.com/artpar/convoy/internal/shell/buildref"
	"github.com/artpar/convoy/internal/shell/marathon/marathontest"
	"github.com/artpar/convoy/internal/shell/reconcile"
)

// =============================================================================
// Test Helpers
// =============================================================================

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convoy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func manifestFor(url string) string {
	return fmt.Sprintf(`
builds:
  - name: web
    registry: registry.local
    version: "1.4.0"
deployments:
  - name: web
    marathon_url: %s
    build_name: web
    cpus: {value: 0.5, mode: override}
    memory: {value: 256, mode: inherit}
  - name: api
    marathon_url: %s
    image_name: repo/api:2
    cpus: {value: 1, mode: override}
    memory: {value: 512, mode: override}
`, url, url)
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	clearEnv(t)
	t.Setenv("CONVOY_POLL_INTERVAL", "1ms")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// deploy
// =============================================================================

func TestRun_DeployAll(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()
	fake.SetInFlightTicks(2)
	fake.AddApp(marathon.App{ID: "web", CPUs: 1, Mem: 1024, Instances: 4})

	path := writeManifest(t, manifestFor(fake.URL))
	code, stdout, stderr := runCLI(t, "deploy", "-f", path)

	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "api")
	assert.Contains(t, stdout, "complete (cold")
	assert.Contains(t, stdout, "complete (warm")

	web, ok := fake.App("web")
	require.True(t, ok)
	assert.Equal(t, 0.5, web["cpus"])
	assert.Equal(t, 1024.0, web["mem"])
	assert.Equal(t, 4.0, web["instances"])
	container := web["container"].(map[string]any)
	docker := container["docker"].(map[string]any)
	assert.Equal(t, "registry.local/web:1.4.0", docker["image"])

	assert.Equal(t, 1, fake.Count(http.MethodPost, "/v2/apps/"))
	assert.Equal(t, 1, fake.Count(http.MethodPut, "/v2/apps/web"))
}

func TestRun_DeploySingle(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()

	path := writeManifest(t, manifestFor(fake.URL))
	code, stdout, _ := runCLI(t, "deploy", "api", "-f", path)

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "api")
	assert.NotContains(t, stdout, "web ")
	_, ok := fake.App("web")
	assert.False(t, ok)
}

func TestRun_DeployUnknownName(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()

	path := writeManifest(t, manifestFor(fake.URL))
	code, _, stderr := runCLI(t, "deploy", "worker", "-f", path)

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "worker")
	assert.Empty(t, fake.Requests())
}

func TestRun_DeployConflict(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()
	fake.RefuseStarts(http.StatusConflict)

	path := writeManifest(t, manifestFor(fake.URL))
	code, _, stderr := runCLI(t, "deploy", "api", "-f", path)

	assert.Equal(t, ExitConflict, code)
	assert.Contains(t, stderr, "FATAL")
	assert.Equal(t, 0, fake.Count(http.MethodGet, "/v2/deployments"))
}

func TestRun_WarmDeployConflict(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()
	fake.AddApp(marathon.App{ID: "web", CPUs: 1, Mem: 1024, Instances: 4})
	fake.RefuseUpdates(http.StatusConflict)

	path := writeManifest(t, manifestFor(fake.URL))
	code, _, stderr := runCLI(t, "deploy", "web", "-f", path)

	assert.Equal(t, ExitConflict, code)
	assert.Contains(t, stderr, "another deployment is in progress")
	assert.Equal(t, 1, fake.Count(http.MethodPut, "/v2/apps/web"))
	assert.Equal(t, 0, fake.Count(http.MethodGet, "/v2/deployments"))
}

func TestRun_DeployTimeout(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()
	fake.SetInFlightTicks(50)

	path := writeManifest(t, manifestFor(fake.URL))
	code, _, _ := runCLI(t, "deploy", "api", "-f", path)

	assert.Equal(t, ExitTimeout, code)
	assert.Equal(t, 10, fake.Count(http.MethodGet, "/v2/deployments"))
}

func TestRun_DeployRejected(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()
	fake.RefuseStarts(http.StatusUnprocessableEntity)

	path := writeManifest(t, manifestFor(fake.URL))
	code, _, _ := runCLI(t, "deploy", "api", "-f", path)

	assert.Equal(t, ExitDeployFailed, code)
}

func TestRun_DeployColdWithoutResources(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()

	path := writeManifest(t, fmt.Sprintf(`
deployments:
  - name: web
    marathon_url: %s
    image_name: repo/web:1
`, fake.URL))
	code, _, stderr := runCLI(t, "deploy", "-f", path)

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "You must specify the parameter 'cpus'")
	assert.Equal(t, 0, fake.Count(http.MethodPost, "/v2/apps"))
}

func TestRun_DeployWritesMetrics(t *testing.T) {
	fake := marathontest.NewServer()
	defer fake.Close()

	path := writeManifest(t, manifestFor(fake.URL))
	metricsFile := filepath.Join(t.TempDir(), "convoy.prom")
	code, _, stderr := runCLI(t, "deploy", "-f", path, "--metrics-file", metricsFile, "--parallel", "2")

	require.Equal(t, ExitSuccess, code, stderr)
	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `convoy_deploys_total{deployment="api",mode="cold",outcome="complete"} 1`)
	assert.Contains(t, string(data), `convoy_poll_ticks_total{deployment="web"} 1`)
}

// =============================================================================
// manifest errors
// =============================================================================

func TestRun_InvalidManifest(t *testing.T) {
	path := writeManifest(t, `
deployments:
  - name: web
    marathon_url: http://x
    image_name: repo/web:1
    cpus: 0.5
`)
	code, _, stderr := runCLI(t, "deploy", "-f", path)

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "Property 'cpus' of deployment 'web'")
}

func TestRun_MissingSettingsFile(t *testing.T) {
	path := writeManifest(t, manifestFor("http://marathon:8080"))
	code, _, stderr := runCLI(t, "list", "-f", path, "--config", filepath.Join(t.TempDir(), "typo.yaml"))

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "failed to read config file")
}

func TestRun_MissingManifest(t *testing.T) {
	code, _, stderr := runCLI(t, "list", "-f", filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "read manifest")
}

// =============================================================================
// list, image, version
// =============================================================================

func TestRun_List(t *testing.T) {
	path := writeManifest(t, manifestFor("http://marathon:8080"))
	code, stdout, _ := runCLI(t, "list", "-f", path)

	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "  Build name: web\n")
	assert.Contains(t, stdout, "    registry  : registry.local\n")
	assert.Contains(t, stdout, "  Deployment name: api\n")
	assert.Contains(t, stdout, fmt.Sprintf("    %-26s: %s\n", "cpus", "0.5 (override)"))
	assert.Contains(t, stdout, fmt.Sprintf("    %-26s: %s\n", "instances", "1 (inherit)"))
	assert.Less(t, bytes.Index([]byte(stdout), []byte("api")), bytes.Index([]byte(stdout), []byte("Deployment name: web")))
}

func TestRun_Image(t *testing.T) {
	path := writeManifest(t, manifestFor("http://marathon:8080"))

	code, stdout, _ := runCLI(t, "image", "web", "-f", path)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "registry.local/web:1.4.0")

	code, _, _ = runCLI(t, "image", "api", "-f", path)
	assert.Equal(t, ExitConfigError, code)
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "convoy dev")
}

func TestRun_UnknownFlag(t *testing.T) {
	code, _, stderr := runCLI(t, "deploy", "--bogus")

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "bogus")
}

// =============================================================================
// exitCode
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"config", validation.NewConfigError("deployment", "web", "x"), ExitConfigError},
		{"not found", fmt.Errorf("deployment %q: %w", "web", registry.ErrNotFound), ExitConfigError},
		{"conflict", &reconcile.DeployError{Deployment: "web", Err: reconcile.ErrConflict}, ExitConflict},
		{"timeout", &reconcile.DeployError{Deployment: "web", Err: reconcile.ErrRetryExceeded}, ExitTimeout},
		{"rejected", &reconcile.DeployError{Deployment: "web", Err: reconcile.ErrDeployRejected}, ExitDeployFailed},
		{"unknown", &reconcile.DeployError{Deployment: "web", Err: reconcile.ErrUnknownState}, ExitDeployFailed},
		{"canceled", context.Canceled, ExitDeployFailed},
		{"unreachable", &reconcile.DeployError{Deployment: "web", Body: "bad proxy", Err: reconcile.ErrUnreachable}, ExitDeployFailed},
		{"git head", fmt.Errorf("build 'web': %w: %w", buildref.ErrVersionUnresolved, errors.New("not a git repository")), ExitDeployFailed},
		{"read manifest", fmt.Errorf("read manifest: %w", os.ErrNotExist), ExitConfigError},
		{"joined", errors.Join(
			&reconcile.DeployError{Deployment: "web", Err: reconcile.ErrRetryExceeded},
			&reconcile.DeployError{Deployment: "api", Err: reconcile.ErrConflict},
		), ExitConflict},
		{"other", errors.New("boom"), ExitConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
