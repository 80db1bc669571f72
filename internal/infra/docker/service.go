package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// ServiceOptions describes a long running container with one published TCP port.
type ServiceOptions struct {
	Name          string
	Image         string
	Entrypoint    []string
	Cmd           []string
	ContainerPort int
	HostPort      int
}

// PortBindings maps containerPort/tcp to hostPort on the loopback interface.
func PortBindings(containerPort, hostPort int) (nat.PortSet, nat.PortMap, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(containerPort))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid container port %d: %w", containerPort, err)
	}

	exposed := nat.PortSet{port: struct{}{}}
	bindings := nat.PortMap{
		port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(hostPort)}},
	}

	return exposed, bindings, nil
}

// StartService creates and starts a detached container and returns its ID.
func (c *Client) StartService(ctx context.Context, opts ServiceOptions) (string, error) {
	exposed, bindings, err := PortBindings(opts.ContainerPort, opts.HostPort)
	if err != nil {
		return "", err
	}

	resp, err := c.cli.ContainerCreate(ctx, &container.Config{
		Image:        opts.Image,
		Entrypoint:   opts.Entrypoint,
		Cmd:          opts.Cmd,
		ExposedPorts: exposed,
	}, &container.HostConfig{
		PortBindings: bindings,
	}, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", opts.Name, err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = c.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("failed to start container %s: %w", opts.Name, err)
	}

	c.logger.With("name", opts.Name).With("id", resp.ID).Info("container started")

	return resp.ID, nil
}

// ServiceRunning reports whether a container with the given name is running.
func (c *Client) ServiceRunning(ctx context.Context, name string) (bool, error) {
	info, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	return info.State != nil && info.State.Running, nil
}

// RemoveService force-removes the named container. A missing container is not an error.
func (c *Client) RemoveService(ctx context.Context, name string) error {
	err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}

	c.logger.With("name", name).Info("container removed")

	return nil
}
