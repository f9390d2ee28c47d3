package buildd

import (
	"testing"
	"time"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CreateAndFinishBuild(t *testing.T) {
	store := testStore(t)

	build := &types.TemplateBuild{
		ID:        "b-1",
		Name:      "peterbot-sandbox-dev",
		Tag:       "latest",
		Status:    types.BuildStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := store.CreateBuild(build); err != nil {
		t.Fatalf("CreateBuild() error: %v", err)
	}

	got, err := store.GetBuild("b-1")
	if err != nil {
		t.Fatalf("GetBuild() error: %v", err)
	}
	if got.Status != types.BuildStatusRunning {
		t.Errorf("expected running status, got %s", got.Status)
	}

	build.Status = types.BuildStatusSucceeded
	build.ImageRef = "localhost/peterbot-template/peterbot-sandbox-dev:latest"
	build.LogLines = 2
	build.FinishedAt = time.Now().UTC()
	if err := store.FinishBuild(build, "line 1\nline 2\n"); err != nil {
		t.Fatalf("FinishBuild() error: %v", err)
	}

	got, err = store.GetBuild("b-1")
	if err != nil {
		t.Fatalf("GetBuild() error: %v", err)
	}
	if got.Status != types.BuildStatusSucceeded {
		t.Errorf("expected succeeded status, got %s", got.Status)
	}
	if got.ImageRef != build.ImageRef {
		t.Errorf("expected image ref %s, got %s", build.ImageRef, got.ImageRef)
	}
	if got.LogLines != 2 {
		t.Errorf("expected 2 log lines, got %d", got.LogLines)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected finished timestamp")
	}

	logText, err := store.GetBuildLog("b-1")
	if err != nil {
		t.Fatalf("GetBuildLog() error: %v", err)
	}
	if logText != "line 1\nline 2\n" {
		t.Errorf("unexpected log text: %q", logText)
	}
}

func TestStore_GetBuildNotFound(t *testing.T) {
	store := testStore(t)
	if _, err := store.GetBuild("nope"); err == nil {
		t.Fatal("expected error for unknown build")
	}
	if _, err := store.GetBuildLog("nope"); err == nil {
		t.Fatal("expected error for unknown build log")
	}
}

func TestStore_ListBuildsNewestFirst(t *testing.T) {
	store := testStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b-old", "b-mid", "b-new"} {
		build := &types.TemplateBuild{
			ID:        id,
			Name:      "peterbot-sandbox-dev",
			Status:    types.BuildStatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.CreateBuild(build); err != nil {
			t.Fatalf("CreateBuild(%s) error: %v", id, err)
		}
	}

	builds, err := store.ListBuilds(10)
	if err != nil {
		t.Fatalf("ListBuilds() error: %v", err)
	}
	if len(builds) != 3 {
		t.Fatalf("expected 3 builds, got %d", len(builds))
	}
	if builds[0].ID != "b-new" || builds[2].ID != "b-old" {
		t.Errorf("expected newest first, got %s, %s, %s", builds[0].ID, builds[1].ID, builds[2].ID)
	}
}
