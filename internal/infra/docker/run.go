package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/go-archive"
)

type (
	// CopyIn describes host files tarred into the container before it starts.
	// Paths in Include are relative to HostDir; an empty Include copies the
	// whole directory.
	CopyIn struct {
		HostDir       string
		Include       []string
		ContainerPath string
	}

	RunOptions struct {
		Image      string
		Cmd        []string
		Env        []string
		CopyIn     []CopyIn
		StreamLogs bool
	}
)

// Run runs a one-shot container, waits for it to exit and returns its stdout.
// The container is always removed afterwards.
func (c *Client) Run(ctx context.Context, opts RunOptions) (string, error) {
	resp, err := c.cli.ContainerCreate(ctx, &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Cmd,
		Env:          opts.Env,
		AttachStdout: true,
		AttachStderr: true,
	}, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	containerID := resp.ID
	defer func() {
		_ = c.cli.ContainerRemove(context.WithoutCancel(ctx), containerID, container.RemoveOptions{Force: true})
	}()

	for _, in := range opts.CopyIn {
		if err := c.copyToContainer(ctx, containerID, in); err != nil {
			return "", err
		}
	}

	attachResp, err := c.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		var outWriter, errWriter io.Writer = &stdout, &stderr
		if opts.StreamLogs {
			errWriter = io.MultiWriter(os.Stderr, &stderr)
		}
		_, _ = stdcopy.StdCopy(outWriter, errWriter, attachResp.Reader)
	}()

	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("error waiting for container: %w", err)
		}
	case status := <-statusCh:
		<-copied
		if status.StatusCode != 0 {
			if msg := stderr.String(); msg != "" {
				return "", fmt.Errorf("container exited with code %d: %s", status.StatusCode, msg)
			}
			return "", fmt.Errorf("container exited with code %d", status.StatusCode)
		}
	}

	return stdout.String(), nil
}

func (c *Client) copyToContainer(ctx context.Context, containerID string, in CopyIn) error {
	content, err := archive.TarWithOptions(in.HostDir, &archive.TarOptions{IncludeFiles: in.Include})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", in.HostDir, err)
	}
	defer content.Close()

	if err := c.cli.CopyToContainer(ctx, containerID, in.ContainerPath, content, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy %s into container: %w", in.HostDir, err)
	}

	return nil
}
