package lock

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/kitforge/kitforge/internal/style"
	"github.com/kitforge/kitforge/pkg/archive"
	"github.com/kitforge/kitforge/pkg/logging"
)

// digestMarkerFile records, inside an extraction target, which digest was
// last fully unpacked there. It is written after every layer lands, so a
// crash mid-extraction never leaves a marker claiming success.
const digestMarkerFile = "digest"

// ociArchive is one pulled OCI image in the local cache: the locked image it
// represents, the platform manifest digest selected for it, and the cache
// directory it lives under.
type ociArchive struct {
	image    LockedImage
	digest   string
	cacheDir string
}

func newOCIArchive(image LockedImage, manifestDigest, cacheDir string) *ociArchive {
	return &ociArchive{
		image:    image,
		digest:   manifestDigest,
		cacheDir: cacheDir,
	}
}

// archivePath keys the cache by manifest digest, with the colon replaced for
// filesystem safety.
func (o *ociArchive) archivePath() string {
	return filepath.Join(o.cacheDir, strings.ReplaceAll(o.digest, ":", "-"))
}

// pullImage saves the image into the cache unless its digest-keyed directory
// already exists. Digests are content hashes, so existence implies the
// contents are correct. Pulls are keyed through pulls so that two kits
// resolving to the same platform manifest share one pull instead of one of
// them reading a partially written archive.
func (o *ociArchive) pullImage(ctx context.Context, client RegistryClient, pulls *singleflight.Group, logger logging.Logger) error {
	archivePath := o.archivePath()
	_, err, _ := pulls.Do(archivePath, func() (interface{}, error) {
		if _, err := os.Stat(archivePath); err == nil {
			logger.Debugf("Image %s already present in cache, skipping pull", style.Symbol(o.image.String()))
			return nil, nil
		}

		logger.Debugf("Pulling image %s", style.Symbol(o.image.String()))
		if err := os.MkdirAll(archivePath, 0755); err != nil {
			return nil, err
		}
		return nil, client.PullOCIImage(ctx, archivePath, o.image.DigestURI(o.digest))
	})
	return err
}

// layerDigest rejects anything that is not a well-formed sha256 digest at
// deserialization time.
type layerDigest string

func (d *layerDigest) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := digest.Parse(raw)
	if err != nil || parsed.Algorithm() != digest.SHA256 {
		return errors.Errorf("invalid digest detected in layer: %s", raw)
	}
	*d = layerDigest(raw)
	return nil
}

func (d layerDigest) String() string {
	return string(d)
}

// indexView and manifestLayoutView are the portions of the cached OCI layout
// the extractor reads.
type indexView struct {
	Manifests []manifestView `json:"manifests"`
}

type manifestLayoutView struct {
	Layers []layerView `json:"layers"`
}

type layerView struct {
	MediaType string      `json:"mediaType"`
	Digest    layerDigest `json:"digest"`
}

// unpackLayers extracts the archive's filesystem layers into outDir in listed
// order, later layers overwriting earlier ones. A digest marker matching the
// current digest makes the whole call a no-op.
func (o *ociArchive) unpackLayers(outDir string, logger logging.Logger) error {
	markerPath := filepath.Join(outDir, digestMarkerFile)
	if marker, err := os.ReadFile(markerPath); err == nil && string(marker) == o.digest {
		logger.Debugf("Found existing digest marker for image %s at %s", style.Symbol(o.image.String()), style.Symbol(markerPath))
		return nil
	}

	logger.Debugf("Unpacking layers for image %s", style.Symbol(o.image.String()))
	if err := os.RemoveAll(outDir); err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	indexBytes, err := os.ReadFile(filepath.Join(o.archivePath(), "index.json"))
	if err != nil {
		return errors.Wrap(err, "reading oci image index")
	}
	var index indexView
	if err := json.Unmarshal(indexBytes, &index); err != nil {
		return errors.Wrap(err, "deserializing oci image index")
	}
	if len(index.Manifests) == 0 {
		return errors.New("empty oci image")
	}

	manifestBytes, err := os.ReadFile(o.blobPath(index.Manifests[0].Digest))
	if err != nil {
		return errors.Wrap(err, "reading manifest blob")
	}
	var manifest manifestLayoutView
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return errors.Wrap(err, "deserializing oci manifest")
	}

	for _, layer := range manifest.Layers {
		if err := o.unpackLayer(layer, outDir); err != nil {
			return err
		}
	}

	if err := os.WriteFile(markerPath, []byte(o.digest), 0644); err != nil {
		return errors.Wrapf(err, "recording digest to %s", style.Symbol(markerPath))
	}
	return nil
}

func (o *ociArchive) unpackLayer(layer layerView, outDir string) error {
	blob, err := os.Open(o.blobPath(layer.Digest.String()))
	if err != nil {
		return errors.Wrap(err, "reading layer of oci image")
	}
	defer blob.Close()

	switch layer.MediaType {
	case ocispec.MediaTypeImageLayerGzip, "application/vnd.docker.image.rootfs.diff.tar.gzip":
		err = archive.ExtractTarGZ(blob, outDir)
	default:
		err = archive.ExtractTar(blob, outDir)
	}
	if err != nil {
		return errors.Wrap(err, "unpacking layer to disk")
	}
	return nil
}

func (o *ociArchive) blobPath(blobDigest string) string {
	return filepath.Join(o.archivePath(), "blobs", strings.ReplaceAll(blobDigest, ":", string(filepath.Separator)))
}
