package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onewithdev/peterbot-sandbox/internal/config"
	"github.com/onewithdev/peterbot-sandbox/pkg/buildlog"
	"github.com/onewithdev/peterbot-sandbox/pkg/client"
	"github.com/onewithdev/peterbot-sandbox/pkg/template"
	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build <name>",
	Short: "Build a sandbox template, streaming logs",
	Long: `Build a sandbox template and stream its build log.

With no flags, builds the predefined Peterbot template definition. Pass
--image to build a plain base-image template, or --dockerfile to build
from a Dockerfile on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if envFile != "" {
			if err := config.LoadDotenv(envFile); err != nil {
				return err
			}
			// Re-read connection settings the env file may have set.
			if v := os.Getenv("PETERBOT_BUILD_URL"); v != "" && !cmd.Flags().Changed("url") {
				baseURL = v
			}
			if v := os.Getenv("PETERBOT_API_KEY"); v != "" && !cmd.Flags().Changed("api-key") {
				apiKey = v
			}
		}

		def, err := resolveDefinition(cmd)
		if err != nil {
			return err
		}

		tag, _ := cmd.Flags().GetString("tag")
		opts := []client.BuildOption{client.WithBuildLogs(buildlog.Default())}
		if tag != "" {
			opts = append(opts, client.WithTag(tag))
		}

		build, err := newClient().Build(context.Background(), def, args[0], opts...)
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}

		fmt.Printf("Built %s (build %s)", args[0], build.ID)
		if build.ImageRef != "" {
			fmt.Printf(" -> %s", build.ImageRef)
		}
		fmt.Println()
		return nil
	},
}

func resolveDefinition(cmd *cobra.Command) (*types.TemplateDefinition, error) {
	image, _ := cmd.Flags().GetString("image")
	dockerfile, _ := cmd.Flags().GetString("dockerfile")

	switch {
	case image != "" && dockerfile != "":
		return nil, fmt.Errorf("--image and --dockerfile are mutually exclusive")
	case image != "":
		return template.New().FromImage(image).Definition()
	case dockerfile != "":
		content, err := os.ReadFile(dockerfile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dockerfile, err)
		}
		return template.New().FromDockerfile(string(content)).Definition()
	default:
		return template.Peterbot(), nil
	}
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("image", "", "Build a template from a base image reference")
	buildCmd.Flags().String("dockerfile", "", "Build a template from a Dockerfile path")
	buildCmd.Flags().String("tag", "", "Tag for the built template (default \"latest\")")
	buildCmd.Flags().String("env-file", "", "Load environment from this dotenv file first")
}
