// Command build-dev triggers a build of the Peterbot sandbox dev template.
// It loads .env from the working directory (if present), sends the
// predefined template definition to the build service, and streams build
// logs to stdout. Any failure exits non-zero.
package main

import (
	"context"
	"log"

	"github.com/onewithdev/peterbot-sandbox/internal/config"
	"github.com/onewithdev/peterbot-sandbox/pkg/buildlog"
	"github.com/onewithdev/peterbot-sandbox/pkg/client"
	"github.com/onewithdev/peterbot-sandbox/pkg/template"
)

func main() {
	if err := config.LoadDotenv(""); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	c := client.NewFromEnv()
	_, err := c.Build(context.Background(), template.Peterbot(), "peterbot-sandbox-dev",
		client.WithBuildLogs(buildlog.Default()))
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}
}
