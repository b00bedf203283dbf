package lock

import (
	"context"

	"github.com/kitforge/kitforge/pkg/registry"
)

// RegistryClient is the registry capability surface the lock subsystem
// consumes. github.com/kitforge/kitforge/pkg/registry provides the production
// implementation.
type RegistryClient interface {
	// GetManifest returns the raw manifest bytes for ref; for multi-platform
	// images this is the manifest list.
	GetManifest(ctx context.Context, ref string) ([]byte, error)

	// GetConfig returns the image config for a single-platform ref.
	GetConfig(ctx context.Context, ref string) (registry.ImageConfig, error)

	// PullOCIImage saves the image at ref into dest as an OCI layout
	// directory.
	PullOCIImage(ctx context.Context, dest, ref string) error
}
