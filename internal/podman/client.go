// Package podman wraps a container engine CLI (podman or docker) for
// template image builds.
package podman

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Client wraps the container engine CLI.
type Client struct {
	binaryPath string
	authFile   string // dedicated auth file to avoid Docker credential helper conflicts
}

// NewClient creates a client for the given engine binary ("podman" or
// "docker"). It verifies the binary is available.
func NewClient(engine string) (*Client, error) {
	if engine == "" {
		engine = "podman"
	}
	path, err := exec.LookPath(engine)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", engine, err)
	}

	// Create a dedicated auth file so the engine doesn't inherit Docker
	// Desktop's credential helpers.
	authFile, err := ensureAuthFile()
	if err != nil {
		return nil, fmt.Errorf("failed to set up registry auth: %w", err)
	}

	return &Client{binaryPath: path, authFile: authFile}, nil
}

func ensureAuthFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "peterbot-sandbox")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	authFile := filepath.Join(dir, "auth.json")
	if _, err := os.Stat(authFile); os.IsNotExist(err) {
		if err := os.WriteFile(authFile, []byte(`{"auths":{}}`), 0600); err != nil {
			return "", err
		}
	}
	return authFile, nil
}

// ExecResult holds the output from an engine command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes an engine command and returns the result.
func (c *Client) Run(ctx context.Context, args ...string) (*ExecResult, error) {
	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	cmd.Env = append(os.Environ(), "REGISTRY_AUTH_FILE="+c.authFile)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("%s exec failed: %w", filepath.Base(c.binaryPath), err)
	}

	return result, nil
}

// StreamLine is one line of engine output, tagged by stream.
type StreamLine struct {
	Stderr bool
	Text   string
}

// RunStream executes an engine command, delivering each output line to fn
// as it is produced. Returns the exit code.
func (c *Client) RunStream(ctx context.Context, fn func(StreamLine), args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	cmd.Env = append(os.Environ(), "REGISTRY_AUTH_FILE="+c.authFile)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", filepath.Base(c.binaryPath), err)
	}

	var mu sync.Mutex
	emit := func(isStderr bool, text string) {
		mu.Lock()
		defer mu.Unlock()
		fn(StreamLine{Stderr: isStderr, Text: text})
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader, isStderr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			emit(isStderr, scanner.Text())
		}
	}
	wg.Add(2)
	go scan(stdout, false)
	go scan(stderr, true)
	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("%s exec failed: %w", filepath.Base(c.binaryPath), err)
	}
	return 0, nil
}

// LoginRegistry authenticates the engine to a registry.
func (c *Client) LoginRegistry(ctx context.Context, registry, username, password string) error {
	cmd := exec.CommandContext(ctx, c.binaryPath, "login", "--username", username, "--password-stdin", registry)
	cmd.Env = append(os.Environ(), "REGISTRY_AUTH_FILE="+c.authFile)
	cmd.Stdin = strings.NewReader(password)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("login to %s failed: %s", registry, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// TagImage tags a local image with a new reference.
func (c *Client) TagImage(ctx context.Context, src, dst string) error {
	result, err := c.Run(ctx, "tag", src, dst)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("tag %s failed (exit %d): %s", dst, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// PushImage pushes an image, streaming progress lines to fn.
func (c *Client) PushImage(ctx context.Context, ref string, fn func(StreamLine)) error {
	exitCode, err := c.RunStream(ctx, fn, "push", ref)
	if err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("push %s failed (exit %d)", ref, exitCode)
	}
	return nil
}

// RemoveImage removes a local image.
func (c *Client) RemoveImage(ctx context.Context, ref string) error {
	result, err := c.Run(ctx, "rmi", "-f", ref)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("rmi %s failed (exit %d): %s", ref, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Version returns the engine version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	result, err := c.Run(ctx, "version", "--format", "{{.Client.Version}}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}
