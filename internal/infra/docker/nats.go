package docker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

const (
	NetworkName       = "token-bridge"
	NATSContainerName = "token-bridge-nats"
	natsClientPort    = "4222/tcp"
	natsMonitorPort   = "8222/tcp"
)

// Labels mark every resource this package creates.
var Labels = map[string]string{"com.compose-network.project": "token-bridge"}

type NATSOptions struct {
	Image       string
	Port        int
	MonitorPort int
}

// EnsureNetwork creates the bridge network unless it exists.
func (c *Client) EnsureNetwork(ctx context.Context) error {
	args := filters.NewArgs()
	args.Add("name", NetworkName)

	networks, err := c.cli.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		return errors.Join(err, errors.New("failed to list Docker networks"))
	}
	for _, n := range networks {
		if n.Name == NetworkName {
			return nil
		}
	}

	if _, err := c.cli.NetworkCreate(ctx, NetworkName, network.CreateOptions{Driver: "bridge", Labels: Labels}); err != nil {
		return errors.Join(err, errors.New("failed to create a network"))
	}
	c.logger.With("network_name", NetworkName).Info("docker network created")
	return nil
}

// PortBindings maps the NATS client and monitoring ports to the host.
func (o NATSOptions) PortBindings() (nat.PortSet, nat.PortMap) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range map[nat.Port]int{natsClientPort: o.Port, natsMonitorPort: o.MonitorPort} {
		if hostPort == 0 {
			continue
		}
		exposed[containerPort] = struct{}{}
		bindings[containerPort] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(hostPort)}}
	}
	return exposed, bindings
}

// StartNATS runs a NATS broker for the relay. An already running broker is kept.
func (c *Client) StartNATS(ctx context.Context, opts NATSOptions) error {
	log := c.logger.With("image", opts.Image).With("port", opts.Port)

	if running, err := c.natsRunning(ctx); err != nil {
		return err
	} else if running {
		log.Info("nats already running")
		return nil
	}

	if err := c.EnsureImage(ctx, opts.Image); err != nil {
		return err
	}
	if err := c.EnsureNetwork(ctx); err != nil {
		return err
	}

	exposed, bindings := opts.PortBindings()
	args := []string{"-js"}
	if opts.MonitorPort != 0 {
		args = append(args, "-m", "8222")
	}
	resp, err := c.cli.ContainerCreate(ctx,
		&container.Config{Image: opts.Image, Cmd: args, ExposedPorts: exposed, Labels: Labels},
		&container.HostConfig{PortBindings: bindings, NetworkMode: container.NetworkMode(NetworkName)},
		nil, nil, NATSContainerName)
	if err != nil {
		return fmt.Errorf("failed to create nats container: %w", err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = c.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start nats container: %w", err)
	}

	log.With("container_id", resp.ID).Info("nats started")
	return nil
}

// StopNATS stops and removes the broker container. A missing container is not an error.
func (c *Client) StopNATS(ctx context.Context) error {
	timeout := 10
	if err := c.cli.ContainerStop(ctx, NATSContainerName, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop nats container: %w", err)
	}
	if err := c.cli.ContainerRemove(ctx, NATSContainerName, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove nats container: %w", err)
	}

	c.logger.Info("nats stopped")
	return nil
}

func (c *Client) natsRunning(ctx context.Context) (bool, error) {
	args := filters.NewArgs()
	args.Add("name", NATSContainerName)
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return false, fmt.Errorf("failed to list containers: %w", err)
	}
	for _, cont := range containers {
		if cont.State == "running" {
			return true, nil
		}
		// A stopped leftover would block the name.
		if err := c.cli.ContainerRemove(ctx, cont.ID, container.RemoveOptions{Force: true}); err != nil {
			return false, fmt.Errorf("failed to remove stale nats container: %w", err)
		}
	}
	return false, nil
}
