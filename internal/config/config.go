package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the build daemon.
type Config struct {
	Port     int
	APIKey   string
	LogLevel string

	// DataDir holds the build history database and scratch build contexts.
	DataDir string

	// Engine is the container engine binary used for builds ("podman" or
	// "docker").
	Engine string

	// ContextDir is the build context for COPY steps (the checked-out
	// workspace on the builder host). Empty means an empty scratch context.
	ContextDir string

	// ECR push target for built template images.
	ECRRegistry   string
	ECRRepository string
	ECRRegion     string

	// S3-compatible object storage for build log archives.
	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool

	// NATS for build lifecycle events.
	NATSURL string

	// AWS Secrets Manager — if set, secrets are fetched at startup using
	// IAM credentials. The secret is a JSON object keyed by env var name.
	// Env vars take precedence over secret values.
	SecretsARN string
}

// LoadDotenv loads key=value pairs from the given file into the process
// environment. Already-set variables win. A missing file is not an error:
// the trigger scripts run with or without a local .env.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with sensible
// defaults. If PETERBOT_SECRETS_ARN is set, secrets are fetched from AWS
// Secrets Manager first, then environment variables are applied on top.
func Load() (*Config, error) {
	if arn := os.Getenv("PETERBOT_SECRETS_ARN"); arn != "" {
		if err := loadSecretsManager(arn); err != nil {
			return nil, fmt.Errorf("failed to load secrets from %s: %w", arn, err)
		}
	}

	cfg := &Config{
		Port:     8080,
		APIKey:   os.Getenv("PETERBOT_API_KEY"),
		LogLevel: envOrDefault("PETERBOT_LOG_LEVEL", "info"),

		DataDir: envOrDefault("PETERBOT_DATA_DIR", "/data/peterbot-builds"),
		Engine:  envOrDefault("PETERBOT_BUILD_ENGINE", "podman"),

		ContextDir: os.Getenv("PETERBOT_BUILD_CONTEXT"),

		ECRRegistry:   os.Getenv("PETERBOT_ECR_REGISTRY"),
		ECRRepository: envOrDefault("PETERBOT_ECR_REPOSITORY", "peterbot-templates"),
		ECRRegion:     envOrDefault("PETERBOT_ECR_REGION", "us-east-1"),

		S3Endpoint:        os.Getenv("PETERBOT_S3_ENDPOINT"),
		S3Bucket:          os.Getenv("PETERBOT_S3_BUCKET"),
		S3Region:          envOrDefault("PETERBOT_S3_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("PETERBOT_S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("PETERBOT_S3_SECRET_ACCESS_KEY"),
		S3ForcePathStyle:  os.Getenv("PETERBOT_S3_FORCE_PATH_STYLE") == "true",

		NATSURL: os.Getenv("PETERBOT_NATS_URL"),

		SecretsARN: os.Getenv("PETERBOT_SECRETS_ARN"),
	}

	if portStr := os.Getenv("PETERBOT_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PETERBOT_PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadSecretsManager fetches a JSON secret from AWS Secrets Manager and sets
// any values as environment variables (only if not already set, so explicit
// env vars always win). Uses the default AWS credential chain.
func loadSecretsManager(arn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Extract region from ARN: arn:aws:secretsmanager:REGION:ACCOUNT:secret:NAME
	var opts []func(*awsconfig.LoadOptions) error
	if parts := strings.Split(arn, ":"); len(parts) >= 4 && parts[3] != "" {
		opts = append(opts, awsconfig.WithRegion(parts[3]))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &arn,
	})
	if err != nil {
		return fmt.Errorf("GetSecretValue: %w", err)
	}

	if result.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", arn)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return fmt.Errorf("parse secret JSON: %w", err)
	}

	applied := 0
	for key, value := range secrets {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
			applied++
		}
	}

	log.Printf("config: loaded %d secrets from Secrets Manager (%d keys in secret, env overrides take precedence)", applied, len(secrets))
	return nil
}
