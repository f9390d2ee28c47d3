// Package ecr resolves registry credentials for pushing template images.
package ecr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
)

// Config holds ECR connection settings.
type Config struct {
	Registry   string // e.g. "123456789012.dkr.ecr.us-east-1.amazonaws.com"
	Repository string // e.g. "peterbot-templates"
	Region     string // e.g. "us-east-1"
}

// IsConfigured returns true if ECR settings are provided.
func (c *Config) IsConfigured() bool {
	return c != nil && c.Registry != "" && c.Repository != ""
}

// GetAuthToken retrieves a Docker-compatible auth token from ECR using the
// default AWS credential chain. Returns (username, password) suitable for
// a registry login.
func GetAuthToken(ctx context.Context, cfg *Config) (string, string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to load AWS config for ECR: %w", err)
	}
	client := ecr.NewFromConfig(awsCfg)

	output, err := client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get ECR auth token: %w", err)
	}

	if len(output.AuthorizationData) == 0 {
		return "", "", fmt.Errorf("no authorization data returned from ECR")
	}

	// Token is base64-encoded "username:password"
	encoded := *output.AuthorizationData[0].AuthorizationToken
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode ECR auth token: %w", err)
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unexpected ECR auth token format")
	}

	return parts[0], parts[1], nil
}

// ImageRef returns the full ECR image reference for a template.
// Format: {registry}/{repo}:{name}-{tag}
func ImageRef(cfg *Config, name, tag string) string {
	if tag == "" {
		tag = "latest"
	}
	return fmt.Sprintf("%s/%s:%s-%s", cfg.Registry, cfg.Repository, name, tag)
}
