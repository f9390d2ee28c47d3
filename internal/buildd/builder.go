package buildd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onewithdev/peterbot-sandbox/internal/ecr"
	"github.com/onewithdev/peterbot-sandbox/internal/events"
	"github.com/onewithdev/peterbot-sandbox/internal/metrics"
	"github.com/onewithdev/peterbot-sandbox/internal/podman"
	"github.com/onewithdev/peterbot-sandbox/internal/storage"
	"github.com/onewithdev/peterbot-sandbox/pkg/template"
	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Builder turns template definitions into container images. Build output
// is streamed to the caller and to live hub subscribers as it is produced.
type Builder struct {
	engine     *podman.Client
	ecrCfg     *ecr.Config // nil if ECR push not configured
	store      *Store
	registry   *Registry
	hub        *Hub
	events     *events.Publisher // nil if NATS not configured
	logStore   *storage.LogStore // nil if S3 archive not configured
	contextDir string
}

// NewBuilder creates a template builder.
func NewBuilder(engine *podman.Client, store *Store, registry *Registry, hub *Hub) *Builder {
	return &Builder{
		engine:   engine,
		store:    store,
		registry: registry,
		hub:      hub,
	}
}

// WithECR enables pushing built images to ECR.
func (b *Builder) WithECR(cfg *ecr.Config) *Builder {
	b.ecrCfg = cfg
	return b
}

// WithEvents enables NATS build lifecycle events.
func (b *Builder) WithEvents(pub *events.Publisher) *Builder {
	b.events = pub
	return b
}

// WithLogArchive enables archiving finished build logs to object storage.
func (b *Builder) WithLogArchive(s *storage.LogStore) *Builder {
	b.logStore = s
	return b
}

// WithContextDir sets the build context used for COPY steps.
func (b *Builder) WithContextDir(dir string) *Builder {
	b.contextDir = dir
	return b
}

// Build builds a template and blocks until it finishes. Every log entry,
// including the terminal result entry, is passed to emit in order. The
// returned build carries the final status; the error return is reserved
// for requests that never started (invalid definition, scratch dir
// failure).
func (b *Builder) Build(ctx context.Context, req *types.TemplateBuildRequest, emit func(types.BuildLogEntry)) (*types.TemplateBuild, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if req.Definition == nil {
		return nil, fmt.Errorf("template definition is required")
	}

	dockerfile, err := template.Dockerfile(req.Definition)
	if err != nil {
		return nil, fmt.Errorf("invalid template definition: %w", err)
	}

	tag := req.Tag
	if tag == "" {
		tag = "latest"
	}

	build := &types.TemplateBuild{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Tag:       tag,
		Status:    types.BuildStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := b.store.CreateBuild(build); err != nil {
		return nil, err
	}

	b.hub.Open(build.ID)
	metrics.BuildsActive.Inc()
	defer metrics.BuildsActive.Dec()

	b.registry.Register(&types.Template{
		ID:        req.Name,
		Name:      req.Name,
		Tag:       tag,
		BuildID:   build.ID,
		Status:    "building",
		CreatedAt: build.StartedAt,
	})
	b.events.Publish(events.SubjectBuildStarted, build)

	var logText strings.Builder
	send := func(entry types.BuildLogEntry) {
		entry.BuildID = build.ID
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now().UTC()
		}
		if entry.Type != types.LogEntryResult {
			logText.WriteString(entry.Line)
			logText.WriteByte('\n')
			build.LogLines++
			metrics.BuildLogLines.WithLabelValues(req.Name).Inc()
		}
		b.hub.Publish(build.ID, entry)
		emit(entry)
	}

	send(types.BuildLogEntry{
		Type: types.LogEntryInfo,
		Line: fmt.Sprintf("building template %s:%s (build %s)", req.Name, tag, build.ID),
	})

	imageRef, buildErr := b.run(ctx, req.Name, tag, dockerfile, send)
	b.finish(build, imageRef, buildErr, logText.String(), send)
	return build, nil
}

// run performs the engine build and optional registry push, returning the
// final image reference.
func (b *Builder) run(ctx context.Context, name, tag, dockerfile string, send func(types.BuildLogEntry)) (string, error) {
	tmpDir, err := os.MkdirTemp("", "peterbot-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir for build: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dockerfilePath := filepath.Join(tmpDir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0644); err != nil {
		return "", fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	contextDir := b.contextDir
	if contextDir == "" {
		contextDir = tmpDir
	}

	localImage := fmt.Sprintf("localhost/peterbot-template/%s:%s", name, tag)

	streamFn := func(line podman.StreamLine) {
		entryType := types.LogEntryStdout
		if line.Stderr {
			entryType = types.LogEntryStderr
		}
		send(types.BuildLogEntry{Type: entryType, Line: line.Text})
	}

	exitCode, err := b.engine.RunStream(ctx, streamFn, "build", "-t", localImage, "-f", dockerfilePath, contextDir)
	if err != nil {
		return "", fmt.Errorf("failed to build template %s: %w", name, err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("image build failed (exit %d)", exitCode)
	}

	if !b.ecrCfg.IsConfigured() {
		return localImage, nil
	}

	// Tag and push to ECR
	username, password, err := ecr.GetAuthToken(ctx, b.ecrCfg)
	if err != nil {
		return "", fmt.Errorf("failed to get ECR auth: %w", err)
	}
	if err := b.engine.LoginRegistry(ctx, b.ecrCfg.Registry, username, password); err != nil {
		return "", fmt.Errorf("failed to login to ECR: %w", err)
	}

	imageRef := ecr.ImageRef(b.ecrCfg, name, tag)
	if err := b.engine.TagImage(ctx, localImage, imageRef); err != nil {
		return "", fmt.Errorf("failed to tag image for ECR: %w", err)
	}

	send(types.BuildLogEntry{Type: types.LogEntryInfo, Line: "pushing " + imageRef})
	if err := b.engine.PushImage(ctx, imageRef, streamFn); err != nil {
		return "", fmt.Errorf("failed to push image: %w", err)
	}

	return imageRef, nil
}

// finish records the outcome, emits the terminal result entry, and closes
// the live stream.
func (b *Builder) finish(build *types.TemplateBuild, imageRef string, buildErr error, logText string, send func(types.BuildLogEntry)) {
	build.FinishedAt = time.Now().UTC()

	if buildErr != nil {
		build.Status = types.BuildStatusFailed
		build.Error = buildErr.Error()
	} else {
		build.Status = types.BuildStatusSucceeded
		build.ImageRef = imageRef
	}

	templateStatus := "ready"
	subject := events.SubjectBuildSucceeded
	if buildErr != nil {
		templateStatus = "error"
		subject = events.SubjectBuildFailed
	}
	b.registry.Register(&types.Template{
		ID:        build.Name,
		Name:      build.Name,
		Tag:       build.Tag,
		ImageRef:  build.ImageRef,
		BuildID:   build.ID,
		Status:    templateStatus,
		CreatedAt: build.FinishedAt,
	})

	if err := b.store.FinishBuild(build, logText); err != nil {
		log.Printf("buildd: record build %s: %v", build.ID, err)
	}
	if b.logStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := b.logStore.Upload(ctx, build.ID, logText); err != nil {
			log.Printf("buildd: archive build log %s: %v", build.ID, err)
		}
		cancel()
	}
	b.events.Publish(subject, build)
	metrics.ObserveBuild(build.Name, build.Status, build.FinishedAt.Sub(build.StartedAt))

	send(types.BuildLogEntry{
		Type:     types.LogEntryResult,
		Status:   build.Status,
		ImageRef: build.ImageRef,
		Error:    build.Error,
	})
	b.hub.Close(build.ID)
}
