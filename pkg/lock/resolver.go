package lock

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
	"github.com/kitforge/kitforge/pkg/logging"
	"github.com/kitforge/kitforge/pkg/project"
)

type resolver struct {
	client RegistryClient
	logger logging.Logger
}

func newResolver(client RegistryClient, logger logging.Logger) *resolver {
	return &resolver{
		client: client,
		logger: logger,
	}
}

// dependencyKey dedups kits by name and vendor. Version is excluded so that
// the same logical kit reached twice with different versions collides here
// and becomes a conflict.
type dependencyKey struct {
	name   string
	vendor string
}

// Resolve walks the project's declared kits breadth first. Each round drains
// the current worklist; dependencies discovered during a round are queued for
// the next one, so traversal depth is bounded by graph depth and cycles
// resolve as "already known, versions match".
func (r *resolver) Resolve(ctx context.Context, proj *project.Project) (Lock, error) {
	known := map[dependencyKey]project.Version{}
	var locked []LockedImage

	sdkSet := map[string]project.Image{}
	if proj.SDK != nil {
		// SDK images are not kits and carry no kit metadata, so the SDK is
		// never scanned for further dependencies.
		sdkSet[proj.SDK.String()] = *proj.SDK
	}

	remaining := append([]project.Image{}, proj.Kits...)
	for len(remaining) > 0 {
		working := remaining
		remaining = nil
		for _, image := range working {
			r.logger.Debugf("Resolving kit %s", style.Symbol(image.String()))

			key := dependencyKey{name: image.Name.String(), vendor: image.Vendor.String()}
			if version, ok := known[key]; ok {
				if !image.Version.Matches(version) {
					return Lock{}, errors.Errorf(
						"cannot have multiple versions of the same kit (%s-%s@%s != %s-%s@%s)",
						image.Name, image.Version.String(), image.Vendor,
						image.Name, version.String(), image.Vendor,
					)
				}
				r.logger.Debugf("Skipping kit %s, already resolved", style.Symbol(image.String()))
				continue
			}

			vendor, ok := proj.Vendor(image.Vendor.String())
			if !ok {
				return Lock{}, errors.Errorf("vendor %s is not specified in %s", style.Symbol(image.Vendor.String()), project.ConfigFile)
			}

			// Recorded before descending so cyclic kit graphs terminate.
			known[key] = image.Version

			lockedImage, err := NewLockedImage(ctx, r.client, vendor, image)
			if err != nil {
				return Lock{}, err
			}
			metadata, err := metadataForImage(ctx, r.client, vendor, lockedImage, r.logger)
			if err != nil {
				return Lock{}, err
			}

			locked = append(locked, lockedImage)
			sdkSet[metadata.SDK.String()] = *metadata.SDK
			remaining = append(remaining, metadata.Kits...)
		}
	}

	sdk, err := r.uniqueSDK(sdkSet)
	if err != nil {
		return Lock{}, err
	}
	vendor, ok := proj.Vendor(sdk.Vendor.String())
	if !ok {
		return Lock{}, errors.Errorf("vendor %s is not specified in %s", style.Symbol(sdk.Vendor.String()), project.ConfigFile)
	}
	lockedSDK, err := NewLockedImage(ctx, r.client, vendor, sdk)
	if err != nil {
		return Lock{}, err
	}

	return Lock{
		SchemaVersion: project.CurrentSchemaVersion,
		SDK:           lockedSDK,
		Kit:           locked,
	}, nil
}

// uniqueSDK unifies every SDK requirement discovered during traversal into
// exactly one.
func (r *resolver) uniqueSDK(sdkSet map[string]project.Image) (project.Image, error) {
	if len(sdkSet) == 0 {
		return project.Image{}, errors.Errorf("no sdk was found for use, please specify an sdk in %s", project.ConfigFile)
	}
	if len(sdkSet) > 1 {
		found := make([]string, 0, len(sdkSet))
		for key := range sdkSet {
			found = append(found, key)
		}
		sort.Strings(found)
		return project.Image{}, errors.Errorf("cannot use multiple sdks (found sdk: %s)", strings.Join(found, ", "))
	}
	for _, sdk := range sdkSet {
		return sdk, nil
	}
	return project.Image{}, errors.New("no sdk was found for use")
}
