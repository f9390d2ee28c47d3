package buildd

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/onewithdev/peterbot-sandbox/internal/podman"
	"github.com/onewithdev/peterbot-sandbox/pkg/client"
	"github.com/onewithdev/peterbot-sandbox/pkg/template"
	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// fakeEngine writes a stand-in container engine script so builds run
// without podman. It prints fixed output lines for "build" and exits with
// the given code.
func fakeEngine(t *testing.T, exitCode int) *podman.Client {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	script := filepath.Join(dir, "podman")
	content := `#!/bin/sh
case "$1" in
build)
	echo "STEP 1/3: FROM python:3.12-slim"
	echo "STEP 2/3: RUN pip install uv"
	echo "STEP 3/3: CMD"
	exit ` + strconv.Itoa(exitCode) + `
	;;
version)
	echo "5.0.0"
	;;
esac
exit 0
`
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}

	engine, err := podman.NewClient(script)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return engine
}

func testServer(t *testing.T, exitCode int, apiKey string) *httptest.Server {
	t.Helper()

	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := NewRegistry()
	hub := NewHub()
	builder := NewBuilder(fakeEngine(t, exitCode), store, registry, hub)

	srv := httptest.NewServer(NewServer(builder, store, registry, hub, apiKey).Echo())
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_BuildStreamsAndRecords(t *testing.T) {
	srv := testServer(t, 0, "test-key")
	c := client.NewClient(srv.URL, "test-key")

	var lines []string
	build, err := c.Build(context.Background(), template.Peterbot(), "peterbot-sandbox-dev",
		client.WithBuildLogs(func(e types.BuildLogEntry) {
			if e.Type == types.LogEntryStdout {
				lines = append(lines, e.Line)
			}
		}))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if build.Status != types.BuildStatusSucceeded {
		t.Errorf("expected succeeded build, got %s", build.Status)
	}
	if build.ImageRef != "localhost/peterbot-template/peterbot-sandbox-dev:latest" {
		t.Errorf("unexpected image ref %q", build.ImageRef)
	}

	want := []string{
		"STEP 1/3: FROM python:3.12-slim",
		"STEP 2/3: RUN pip install uv",
		"STEP 3/3: CMD",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d stdout lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}

	// Build is recorded and the template registered as ready.
	got, err := c.GetBuild(context.Background(), build.ID)
	if err != nil {
		t.Fatalf("GetBuild() error: %v", err)
	}
	if got.Status != types.BuildStatusSucceeded {
		t.Errorf("expected recorded build succeeded, got %s", got.Status)
	}
	if got.LogLines == 0 {
		t.Error("expected recorded log lines")
	}

	tmpl, err := c.GetTemplate(context.Background(), "peterbot-sandbox-dev")
	if err != nil {
		t.Fatalf("GetTemplate() error: %v", err)
	}
	if tmpl.Status != "ready" {
		t.Errorf("expected ready template, got %s", tmpl.Status)
	}

	logText, err := c.GetBuildLogs(context.Background(), build.ID)
	if err != nil {
		t.Fatalf("GetBuildLogs() error: %v", err)
	}
	if logText == "" {
		t.Error("expected stored build log text")
	}
}

func TestServer_FailedBuild(t *testing.T) {
	srv := testServer(t, 1, "")
	c := client.NewClient(srv.URL, "")

	build, err := c.Build(context.Background(), template.Peterbot(), "peterbot-sandbox-dev")
	if err == nil {
		t.Fatal("expected error for failed build")
	}
	if build == nil || build.Status != types.BuildStatusFailed {
		t.Fatalf("expected failed build record, got %+v", build)
	}

	got, err := c.GetBuild(context.Background(), build.ID)
	if err != nil {
		t.Fatalf("GetBuild() error: %v", err)
	}
	if got.Status != types.BuildStatusFailed {
		t.Errorf("expected recorded failure, got %s", got.Status)
	}

	tmpl, err := c.GetTemplate(context.Background(), "peterbot-sandbox-dev")
	if err != nil {
		t.Fatalf("GetTemplate() error: %v", err)
	}
	if tmpl.Status != "error" {
		t.Errorf("expected error template status, got %s", tmpl.Status)
	}
}

func TestServer_RejectsInvalidRequest(t *testing.T) {
	srv := testServer(t, 0, "")
	c := client.NewClient(srv.URL, "")

	// Definition with no base image is rejected before any build starts.
	_, err := c.Build(context.Background(), &types.TemplateDefinition{}, "bad")
	if err == nil {
		t.Fatal("expected error for empty definition")
	}

	builds, err := c.ListBuilds(context.Background())
	if err != nil {
		t.Fatalf("ListBuilds() error: %v", err)
	}
	if len(builds) != 0 {
		t.Errorf("expected no recorded builds, got %d", len(builds))
	}
}

func TestServer_AuthRequired(t *testing.T) {
	srv := testServer(t, 0, "secret")

	if _, err := client.NewClient(srv.URL, "").ListTemplates(context.Background()); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := client.NewClient(srv.URL, "wrong").ListTemplates(context.Background()); err == nil {
		t.Fatal("expected error with wrong API key")
	}
	if _, err := client.NewClient(srv.URL, "secret").ListTemplates(context.Background()); err != nil {
		t.Fatalf("expected success with correct API key, got: %v", err)
	}
}

func TestServer_WatchFinishedBuild(t *testing.T) {
	srv := testServer(t, 0, "")
	c := client.NewClient(srv.URL, "")

	build, err := c.Build(context.Background(), template.Peterbot(), "peterbot-sandbox-dev")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	var got []types.BuildLogEntry
	err = c.WatchBuild(context.Background(), build.ID, func(e types.BuildLogEntry) {
		got = append(got, e)
	})
	if err != nil {
		t.Fatalf("WatchBuild() error: %v", err)
	}
	if len(got) != 1 || got[0].Type != types.LogEntryResult {
		t.Fatalf("expected a single result entry for a finished build, got %+v", got)
	}
	if got[0].Status != types.BuildStatusSucceeded {
		t.Errorf("expected succeeded result, got %s", got[0].Status)
	}
}
