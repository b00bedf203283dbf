package lock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
	"github.com/kitforge/kitforge/pkg/logging"
	"github.com/kitforge/kitforge/pkg/project"
)

// MetadataLabel is the image config label under which a published kit embeds
// its own declaration.
const MetadataLabel = "dev.kitforge.kit.v1"

// ImageMetadata is a kit's embedded declaration: the SDK it requires and the
// kits it depends on. Name and version are self-descriptive only. The sdk
// field is required; metadata without one is malformed.
type ImageMetadata struct {
	Name    string          `json:"name"`
	Version project.Version `json:"version"`
	SDK     *project.Image  `json:"sdk,omitempty"`
	Kits    []project.Image `json:"kit"`
}

// encodedMetadata is the raw base64 label value before decoding.
type encodedMetadata string

// encodedMetadataFromImage reads the metadata label off the image config for
// ref, which must address a single-platform manifest.
func encodedMetadataFromImage(ctx context.Context, client RegistryClient, ref string) (encodedMetadata, error) {
	config, err := client.GetConfig(ctx, ref)
	if err != nil {
		return "", err
	}
	value, ok := config.Labels[MetadataLabel]
	if !ok {
		return "", errors.Errorf("no metadata stored on image %s, this image appears to not be a kit", style.Symbol(ref))
	}
	return encodedMetadata(value), nil
}

func (e encodedMetadata) decode() (ImageMetadata, error) {
	raw, err := base64.StdEncoding.DecodeString(string(e))
	if err != nil {
		return ImageMetadata{}, errors.Wrap(err, "decoding kit metadata as base64")
	}
	var metadata ImageMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return ImageMetadata{}, errors.Wrap(err, "parsing kit metadata json")
	}
	if metadata.SDK == nil {
		return ImageMetadata{}, errors.New("kit metadata does not declare an sdk")
	}
	return metadata, nil
}

// String renders the decoded metadata when possible and otherwise falls back
// to the encoded form, so it never fails and is safe in logging paths.
func (e encodedMetadata) String() string {
	if decoded, ok := e.debugString(); ok {
		return decoded
	}
	return fmt.Sprintf("<ImageMetadata(encoded) [%s]>", strings.ReplaceAll(string(e), "\n", "\\n"))
}

func (e encodedMetadata) debugString() (string, bool) {
	metadata, err := e.decode()
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("<ImageMetadata(decoded) [%+v]>", metadata), true
}

// manifestListView is the portion of a manifest list the lock subsystem
// reads.
type manifestListView struct {
	Manifests []manifestView `json:"manifests"`
}

type manifestView struct {
	Digest   string        `json:"digest"`
	Platform *platformView `json:"platform,omitempty"`
}

type platformView struct {
	Architecture string `json:"architecture"`
}

// metadataForImage decodes the kit metadata embedded in image. Every
// per-platform manifest in the list must carry byte-for-byte identical
// metadata; the first manifest's metadata is taken as canonical and each
// subsequent one is compared against it, stopping at the first mismatch so no
// further registry calls are made.
func metadataForImage(ctx context.Context, client RegistryClient, vendor project.Vendor, image LockedImage, logger logging.Logger) (ImageMetadata, error) {
	var list manifestListView
	if err := json.Unmarshal(image.Manifest(), &list); err != nil {
		return ImageMetadata{}, errors.Wrap(err, "deserializing manifest list")
	}

	logger.Debugf("Extracting kit metadata from %s", style.Symbol(image.String()))

	var canonical encodedMetadata
	found := false
	for _, manifest := range list.Manifests {
		imageURI := fmt.Sprintf("%s/%s@%s", vendor.Registry, image.Name, manifest.Digest)
		encoded, err := encodedMetadataFromImage(ctx, client, imageURI)
		if err != nil {
			return ImageMetadata{}, err
		}
		if !found {
			canonical = encoded
			found = true
			continue
		}
		if encoded != canonical {
			return ImageMetadata{}, errors.Errorf(
				"metadata does not match between images in manifest list for %s: canonical %s, divergent %s",
				style.Symbol(image.String()), canonical, encoded,
			)
		}
	}
	if !found {
		return ImageMetadata{}, errors.Errorf("could not find metadata for kit %s", style.Symbol(image.String()))
	}

	metadata, err := canonical.decode()
	if err != nil {
		return ImageMetadata{}, errors.Wrapf(err, "decoding metadata for kit %s", style.Symbol(image.String()))
	}
	return metadata, nil
}
