package types

import "time"

// Template represents a built sandbox template (a container image).
type Template struct {
	ID        string    `json:"templateID"`
	Name      string    `json:"name"`
	Tag       string    `json:"tag,omitempty"`
	ImageRef  string    `json:"imageRef,omitempty"`
	BuildID   string    `json:"buildID,omitempty"`
	Status    string    `json:"status"` // "ready", "building", "error"
	CreatedAt time.Time `json:"createdAt"`
}

// StepType identifies a template definition step.
type StepType string

const (
	StepFrom    StepType = "from"
	StepRun     StepType = "run"
	StepCopy    StepType = "copy"
	StepEnv     StepType = "env"
	StepWorkdir StepType = "workdir"
	StepUser    StepType = "user"
)

// Step is one instruction in a template definition.
type Step struct {
	Type StepType          `json:"type"`
	Args []string          `json:"args,omitempty"`
	Envs map[string]string `json:"envs,omitempty"`
}

// TemplateDefinition describes how to build a sandbox template. It is
// produced by the pkg/template builder and consumed opaquely by the build
// service.
type TemplateDefinition struct {
	// BaseImage is the image the template starts from. Mutually exclusive
	// with Dockerfile.
	BaseImage string `json:"baseImage,omitempty"`

	// Dockerfile, if set, is used verbatim and Steps are ignored.
	Dockerfile string `json:"dockerfile,omitempty"`

	Steps []Step `json:"steps,omitempty"`

	// StartCmd is the command a sandbox boots with. ReadyCmd, if set,
	// gates readiness.
	StartCmd string `json:"startCmd,omitempty"`
	ReadyCmd string `json:"readyCmd,omitempty"`
}

// TemplateBuildRequest is the request body for building a template.
type TemplateBuildRequest struct {
	Name       string              `json:"name"`
	Tag        string              `json:"tag,omitempty"`
	Definition *TemplateDefinition `json:"definition"`
}

// Build statuses.
const (
	BuildStatusRunning   = "running"
	BuildStatusSucceeded = "succeeded"
	BuildStatusFailed    = "failed"
)

// TemplateBuild records one build of a template.
type TemplateBuild struct {
	ID         string    `json:"buildID"`
	Name       string    `json:"name"`
	Tag        string    `json:"tag,omitempty"`
	Status     string    `json:"status"`
	ImageRef   string    `json:"imageRef,omitempty"`
	Error      string    `json:"error,omitempty"`
	LogLines   int       `json:"logLines"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Build log entry types.
const (
	LogEntryStdout = "stdout"
	LogEntryStderr = "stderr"
	LogEntryInfo   = "info"
	LogEntryResult = "result"
)

// BuildLogEntry is one event on a build log stream. An entry with type
// "result" terminates the stream and carries the final build status.
type BuildLogEntry struct {
	Type      string    `json:"type"`
	BuildID   string    `json:"buildID,omitempty"`
	Line      string    `json:"line,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Set on "result" entries only.
	Status   string `json:"status,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
	Error    string `json:"error,omitempty"`
}
