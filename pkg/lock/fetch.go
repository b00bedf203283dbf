package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kitforge/kitforge/internal/style"
	"github.com/kitforge/kitforge/pkg/logging"
	"github.com/kitforge/kitforge/pkg/project"
)

// extractConcurrency bounds the number of kits materialized at once during a
// fetch. Each kit owns its target directory, so fan-out is safe.
const extractConcurrency = 4

// externalImage is the canonical JSON projection of a LockedImage: fields in
// lexicographic order and no manifest bytes, so the encoding is stable and
// byte-comparable across runs.
type externalImage struct {
	Digest  string          `json:"digest"`
	Name    string          `json:"name"`
	Source  string          `json:"source"`
	Vendor  string          `json:"vendor"`
	Version project.Version `json:"version"`
}

type externalKitMetadata struct {
	Kits []externalImage `json:"kit"`
	SDK  externalImage   `json:"sdk"`
}

func externalImageFor(image LockedImage) externalImage {
	return externalImage{
		Digest:  image.Digest,
		Name:    image.Name,
		Source:  image.Source,
		Vendor:  image.Vendor,
		Version: image.Version,
	}
}

func (l Lock) externalMetadata() externalKitMetadata {
	kits := make([]externalImage, 0, len(l.Kit))
	for _, kit := range l.Kit {
		kits = append(kits, externalImageFor(kit))
	}
	return externalKitMetadata{
		Kits: kits,
		SDK:  externalImageFor(l.SDK),
	}
}

// Fetch materializes every locked kit for arch under the project's external
// kits directory, then refreshes the external metadata file the downstream
// build consumes. The metadata write is skipped when the bytes on disk are
// already identical, to avoid invalidating downstream timestamps.
func (l Lock) Fetch(ctx context.Context, client RegistryClient, proj *project.Project, arch Architecture, logger logging.Logger) error {
	targetDir := proj.ExternalKitsDir()
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return errors.Wrapf(err, "creating external kits directory at %s", style.Symbol(targetDir))
	}

	logger.Infof("Extracting %d kit dependencies", len(l.Kit))
	var pulls singleflight.Group
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(extractConcurrency)
	for _, image := range l.Kit {
		image := image
		group.Go(func() error {
			return l.extractKit(groupCtx, client, targetDir, image, arch, &pulls, logger)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	encoded, err := json.Marshal(l.externalMetadata())
	if err != nil {
		return errors.Wrap(err, "serializing external kit metadata")
	}

	metadataPath := proj.ExternalMetadataPath()
	if existing, err := os.ReadFile(metadataPath); err == nil && bytes.Equal(existing, encoded) {
		logger.Debugf("External kit metadata at %s is up to date", style.Symbol(metadataPath))
		return nil
	}
	if err := os.WriteFile(metadataPath, encoded, 0644); err != nil {
		return errors.Wrapf(err, "writing external kit metadata to %s", style.Symbol(metadataPath))
	}
	return nil
}

// manifestForArchitecture picks the platform manifest for arch out of the
// image's manifest list.
func manifestForArchitecture(ctx context.Context, client RegistryClient, image LockedImage, arch Architecture) (manifestView, error) {
	manifest, err := client.GetManifest(ctx, image.Source)
	if err != nil {
		return manifestView{}, err
	}
	var list manifestListView
	if err := json.Unmarshal(manifest, &list); err != nil {
		return manifestView{}, errors.Wrap(err, "deserializing manifest list")
	}
	for _, entry := range list.Manifests {
		if entry.Platform != nil && entry.Platform.Architecture == arch.String() {
			return entry, nil
		}
	}
	return manifestView{}, errors.Errorf(
		"could not find kit image for architecture %s at %s",
		style.Symbol(arch.String()), style.Symbol(image.Source),
	)
}

// extractKit pulls one locked kit into the shared digest-keyed cache and
// unpacks its layers into <vendor>/<name>/<arch> under dir.
func (l Lock) extractKit(ctx context.Context, client RegistryClient, dir string, image LockedImage, arch Architecture, pulls *singleflight.Group, logger logging.Logger) error {
	logger.Infof("Extracting kit %s to %s", style.Symbol(image.String()), style.Symbol(dir))

	targetPath := filepath.Join(dir, image.Vendor, image.Name, arch.String())
	cachePath := filepath.Join(dir, "cache")
	if err := os.MkdirAll(targetPath, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(cachePath, 0755); err != nil {
		return err
	}

	manifest, err := manifestForArchitecture(ctx, client, image, arch)
	if err != nil {
		return err
	}

	archive := newOCIArchive(image, manifest.Digest, cachePath)
	if err := archive.pullImage(ctx, client, pulls, logger); err != nil {
		return err
	}
	return archive.unpackLayers(targetPath, logger)
}
