package sandbox

import (
	"go.uber.org/zap"
)

// NewPodmanDriver creates a ContainerDriver backed by the podman CLI.
// Every container gets its own user namespace, so ids inside it map to no
// host user.
func NewPodmanDriver(logger *zap.Logger, opts ...ContainerDriverOption) *ContainerDriver {
	return newContainerDriver(logger, BackendPodman, []string{"--userns", "auto"}, opts)
}
