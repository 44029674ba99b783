package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

type ContainerSpec struct {
	Image         string
	Cmd           []string
	Env           []string
	ContainerPort int
	HostPort      int
}

// ContainerRuntime manages the compute resource a self-hosted backend runs in.
type ContainerRuntime interface {
	// StartContainer pulls the image if needed, creates the container and
	// starts it, returning the container ID.
	StartContainer(ctx context.Context, spec ContainerSpec) (string, error)

	// ContainerAddress returns the container's bridge network address. May be
	// empty shortly after creation while address assignment lags.
	ContainerAddress(ctx context.Context, id string) (string, error)

	StopContainer(ctx context.Context, id string) error

	// ContainerExists probes whether the container is still known to the
	// platform. Used to validate cached resource handles.
	ContainerExists(ctx context.Context, id string) (bool, error)
}

type dockerRuntime struct {
	cli *client.Client
}

func NewDockerRuntime() (ContainerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the docker daemon: %w", err)
	}
	return &dockerRuntime{cli: cli}, nil
}

func (d *dockerRuntime) StartContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	pull, err := d.cli.ImagePull(ctx, spec.Image, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to pull image %s: %w", spec.Image, err)
	}
	// the pull stream must be drained before the image is usable
	_, err = io.Copy(io.Discard, pull)
	pull.Close()
	if err != nil {
		return "", fmt.Errorf("failed to pull image %s: %w", spec.Image, err)
	}

	port := nat.Port(fmt.Sprintf("%d/tcp", spec.ContainerPort))
	created, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Cmd:          spec.Cmd,
			Env:          spec.Env,
			ExposedPorts: nat.PortSet{port: struct{}{}},
		},
		&container.HostConfig{
			NetworkMode: "bridge",
			AutoRemove:  true,
			PortBindings: nat.PortMap{
				port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(spec.HostPort)}},
			},
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	err = d.cli.ContainerStart(ctx, created.ID, container.StartOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to start container %s: %w", created.ID, err)
	}
	slog.Debug("started container", slog.String("ID", created.ID), slog.String("image", spec.Image))
	return created.ID, nil
}

func (d *dockerRuntime) ContainerAddress(ctx context.Context, id string) (string, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", err
	}
	bridge, ok := info.NetworkSettings.Networks["bridge"]
	if !ok {
		return "", nil
	}
	return bridge.IPAddress, nil
}

func (d *dockerRuntime) StopContainer(ctx context.Context, id string) error {
	return d.cli.ContainerStop(ctx, id, container.StopOptions{})
}

func (d *dockerRuntime) ContainerExists(ctx context.Context, id string) (bool, error) {
	_, err := d.cli.ContainerInspect(ctx, id)
	if client.IsErrNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
