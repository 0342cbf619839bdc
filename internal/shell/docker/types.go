// Package docker provides a Docker client for app container lifecycle
// management.
package docker

import (
	"context"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating an app container.
type ContainerSpec struct {
	Name          string
	Image         string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortBinding
	Volumes       []VolumeMount
	Networks      []NetworkAttachment
	User          string
	RestartPolicy string // "no", "always", "on-failure", "unless-stopped"
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
}

// VolumeMount defines a volume mount.
type VolumeMount struct {
	Source   string // volume name or host path
	Target   string // container path
	Named    bool   // named volume rather than bind
	ReadOnly bool
}

// NetworkAttachment defines one network the container joins.
type NetworkAttachment struct {
	Name        string
	IPv4Address string // "" for daemon-assigned
}

// =============================================================================
// Container Info
// =============================================================================

// ContainerState represents the daemon-reported container state.
type ContainerState string

const (
	ContainerStateCreated    ContainerState = "created"
	ContainerStateRunning    ContainerState = "running"
	ContainerStateRestarting ContainerState = "restarting"
	ContainerStateExited     ContainerState = "exited"
	ContainerStateDead       ContainerState = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	State     ContainerState
	Health    string // "healthy", "unhealthy", "starting", ""
	Address   string // first network's IPv4 address
	CreatedAt time.Time
	StartedAt *time.Time
	ExitCode  int
}

// =============================================================================
// Network Types
// =============================================================================

// NetworkSpec defines the specification for creating a network.
type NetworkSpec struct {
	Name    string
	Driver  string // "bridge" when empty
	Subnet  string
	Gateway string
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker operations the orchestrator needs.
type Client interface {
	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)

	// Network operations
	EnsureNetwork(ctx context.Context, spec NetworkSpec) (networkID string, err error)
	RemoveNetwork(ctx context.Context, networkID string) error

	// Image operations
	PullImage(ctx context.Context, image string) error

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged   = "dev.mastarr.managed"
	LabelApp       = "dev.mastarr.app"
	LabelBlueprint = "dev.mastarr.blueprint"
)
