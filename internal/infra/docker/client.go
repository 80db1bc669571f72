package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/containerd/errdefs"
	"github.com/crossrealm/deployer/internal/logger"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

type Client struct {
	cli    *client.Client
	logger *slog.Logger
}

// New creates a new Docker client.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	return &Client{cli: cli, logger: logger.Named("docker_client")}, nil
}

// Close closes the Docker client connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ImageExists checks if a Docker image exists locally.
func (c *Client) ImageExists(ctx context.Context, imageName string) (bool, error) {
	_, err := c.cli.ImageInspect(ctx, imageName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// EnsureImage pulls imageName unless it is already present locally.
func (c *Client) EnsureImage(ctx context.Context, imageName string) error {
	exists, err := c.ImageExists(ctx, imageName)
	if err != nil {
		return fmt.Errorf("failed to inspect image %s: %w", imageName, err)
	}
	if exists {
		c.logger.With("image", imageName).Debug("docker image present locally")
		return nil
	}

	return c.PullImage(ctx, imageName)
}

// PullImage pulls a Docker image from a registry.
func (c *Client) PullImage(ctx context.Context, imageName string) error {
	c.logger.With("image", imageName).Info("pulling docker image")

	resp, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer resp.Close()

	if err := c.drainProgress(resp); err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	c.logger.With("image", imageName).Info("docker image pulled successfully")
	return nil
}

// drainProgress consumes a daemon progress stream and returns the last
// error message it reported.
func (c *Client) drainProgress(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var streamErr error
	for scanner.Scan() {
		line := scanner.Bytes()
		c.logger.Debug(string(line))

		if msg := progressError(line); msg != "" {
			streamErr = errors.New(msg)
			c.logger.Error("docker progress error", "error", msg)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading progress output: %w", err)
	}

	return streamErr
}

func progressError(line []byte) string {
	var msg struct {
		Error       string `json:"error"`
		ErrorDetail struct {
			Message string `json:"message"`
		} `json:"errorDetail"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return ""
	}
	if msg.ErrorDetail.Message != "" {
		return msg.ErrorDetail.Message
	}

	return msg.Error
}
