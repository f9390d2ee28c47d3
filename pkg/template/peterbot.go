package template

import "github.com/onewithdev/peterbot-sandbox/pkg/types"

// Peterbot returns the definition of the Peterbot sandbox template: a
// Python image with the bot workspace copied in and dependencies installed
// via uv. The dev build trigger (cmd/build-dev) and the production pipeline
// both build from this definition.
func Peterbot() *types.TemplateDefinition {
	def, err := New().
		FromImage("python:3.12-slim").
		RunCmd(
			"apt-get update",
			"apt-get install -y --no-install-recommends git curl ca-certificates",
			"rm -rf /var/lib/apt/lists/*",
		).
		RunCmd("pip install --no-cache-dir uv").
		SetWorkdir("/home/user/peterbot").
		CopyDir(".", "/home/user/peterbot").
		RunCmd("uv sync --frozen").
		SetEnvs(map[string]string{
			"PYTHONUNBUFFERED": "1",
			"UV_LINK_MODE":     "copy",
		}).
		SetStartCmd("uv run python -m peterbot.server", "curl -sf http://localhost:8000/health").
		Definition()
	if err != nil {
		// The definition above is static; a construction error is a bug.
		panic(err)
	}
	return def
}
