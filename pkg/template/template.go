// Package template provides a fluent builder for sandbox template
// definitions. A definition lists the base image, the steps that customize
// it, and the command a sandbox boots with. The build service renders the
// definition to a Dockerfile and builds it with a container engine.
package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Builder accumulates template definition steps. Methods chain; the first
// invalid step is reported by Definition.
type Builder struct {
	def types.TemplateDefinition
	err error
}

// New creates an empty template builder.
func New() *Builder {
	return &Builder{}
}

// FromImage sets the base image the template starts from.
func (b *Builder) FromImage(ref string) *Builder {
	if b.err != nil {
		return b
	}
	if ref == "" {
		b.err = fmt.Errorf("base image reference is empty")
		return b
	}
	if b.def.BaseImage != "" || b.def.Dockerfile != "" {
		b.err = fmt.Errorf("base already set")
		return b
	}
	b.def.BaseImage = ref
	return b
}

// FromDockerfile uses a raw Dockerfile as the template definition. It is
// mutually exclusive with FromImage and step methods.
func (b *Builder) FromDockerfile(content string) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(content) == "" {
		b.err = fmt.Errorf("dockerfile content is empty")
		return b
	}
	if b.def.BaseImage != "" || b.def.Dockerfile != "" {
		b.err = fmt.Errorf("base already set")
		return b
	}
	b.def.Dockerfile = content
	return b
}

func (b *Builder) addStep(s types.Step) *Builder {
	if b.err != nil {
		return b
	}
	if b.def.Dockerfile != "" {
		b.err = fmt.Errorf("cannot add %s step to a raw Dockerfile definition", s.Type)
		return b
	}
	if b.def.BaseImage == "" {
		b.err = fmt.Errorf("call FromImage before adding %s step", s.Type)
		return b
	}
	b.def.Steps = append(b.def.Steps, s)
	return b
}

// RunCmd appends a shell command step.
func (b *Builder) RunCmd(cmd ...string) *Builder {
	if len(cmd) == 0 {
		if b.err == nil {
			b.err = fmt.Errorf("RunCmd requires at least one command")
		}
		return b
	}
	return b.addStep(types.Step{Type: types.StepRun, Args: cmd})
}

// CopyDir appends a copy step from the build context into the image.
func (b *Builder) CopyDir(src, dst string) *Builder {
	if src == "" || dst == "" {
		if b.err == nil {
			b.err = fmt.Errorf("CopyDir requires src and dst")
		}
		return b
	}
	return b.addStep(types.Step{Type: types.StepCopy, Args: []string{src, dst}})
}

// SetEnvs appends an environment step.
func (b *Builder) SetEnvs(envs map[string]string) *Builder {
	if len(envs) == 0 {
		return b
	}
	return b.addStep(types.Step{Type: types.StepEnv, Envs: envs})
}

// SetWorkdir appends a workdir step.
func (b *Builder) SetWorkdir(dir string) *Builder {
	if dir == "" {
		if b.err == nil {
			b.err = fmt.Errorf("SetWorkdir requires a directory")
		}
		return b
	}
	return b.addStep(types.Step{Type: types.StepWorkdir, Args: []string{dir}})
}

// SetUser appends a user step.
func (b *Builder) SetUser(user string) *Builder {
	if user == "" {
		if b.err == nil {
			b.err = fmt.Errorf("SetUser requires a user")
		}
		return b
	}
	return b.addStep(types.Step{Type: types.StepUser, Args: []string{user}})
}

// SetStartCmd sets the command a sandbox runs on boot. readyCmd, if
// non-empty, is polled by the runtime to gate readiness.
func (b *Builder) SetStartCmd(cmd, readyCmd string) *Builder {
	if b.err != nil {
		return b
	}
	if cmd == "" {
		b.err = fmt.Errorf("start command is empty")
		return b
	}
	b.def.StartCmd = cmd
	b.def.ReadyCmd = readyCmd
	return b
}

// Definition finalizes the builder and returns the definition.
func (b *Builder) Definition() (*types.TemplateDefinition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.def.BaseImage == "" && b.def.Dockerfile == "" {
		return nil, fmt.Errorf("template has no base image or Dockerfile")
	}
	def := b.def
	return &def, nil
}

// Dockerfile renders a definition to Dockerfile text. Raw Dockerfile
// definitions pass through unchanged. Env steps render keys sorted so the
// output is deterministic.
func Dockerfile(def *types.TemplateDefinition) (string, error) {
	if def.Dockerfile != "" {
		return def.Dockerfile, nil
	}
	if def.BaseImage == "" {
		return "", fmt.Errorf("template has no base image or Dockerfile")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n", def.BaseImage)

	for _, s := range def.Steps {
		switch s.Type {
		case types.StepRun:
			fmt.Fprintf(&sb, "RUN %s\n", strings.Join(s.Args, " && "))
		case types.StepCopy:
			if len(s.Args) != 2 {
				return "", fmt.Errorf("copy step requires src and dst, got %d args", len(s.Args))
			}
			fmt.Fprintf(&sb, "COPY %s %s\n", s.Args[0], s.Args[1])
		case types.StepEnv:
			keys := make([]string, 0, len(s.Envs))
			for k := range s.Envs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, "ENV %s=%q\n", k, s.Envs[k])
			}
		case types.StepWorkdir:
			fmt.Fprintf(&sb, "WORKDIR %s\n", s.Args[0])
		case types.StepUser:
			fmt.Fprintf(&sb, "USER %s\n", s.Args[0])
		default:
			return "", fmt.Errorf("unknown step type %q", s.Type)
		}
	}

	if def.StartCmd != "" {
		fmt.Fprintf(&sb, "CMD [\"/bin/sh\", \"-c\", %q]\n", def.StartCmd)
	}

	return sb.String(), nil
}
