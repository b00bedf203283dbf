package lock_test

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/kitforge/kitforge/internal/fakes"
	"github.com/kitforge/kitforge/pkg/lock"
	"github.com/kitforge/kitforge/pkg/project"
	"github.com/kitforge/kitforge/pkg/registry"
	h "github.com/kitforge/kitforge/testhelpers"
)

const testRegistry = "registry.example.com/acme"

func loadProject(t *testing.T, dir, contents string) *project.Project {
	t.Helper()
	path := filepath.Join(dir, project.ConfigFile)
	h.AssertNil(t, os.WriteFile(path, []byte(contents), 0644))
	proj, err := project.Load(path)
	h.AssertNil(t, err)
	return proj
}

func kitImage(name, version string) project.Image {
	return project.Image{
		Name:    project.Identifier(name),
		Version: project.MustVersion(version),
		Vendor:  "acme",
	}
}

// testDigest produces a well-formed sha256 digest string from a single
// distinguishing byte.
func testDigest(fill byte) string {
	return "sha256:" + hex.EncodeToString(bytes.Repeat([]byte{fill}, 32))
}

func sha256Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func manifestDigestOf(manifest []byte) string {
	sum := sha256.Sum256(manifest)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type platformManifest struct {
	arch   string
	digest string
}

func manifestList(t *testing.T, entries ...platformManifest) []byte {
	t.Helper()
	type platform struct {
		Architecture string `json:"architecture"`
	}
	type manifest struct {
		Digest   string   `json:"digest"`
		Platform platform `json:"platform"`
	}
	list := struct {
		Manifests []manifest `json:"manifests"`
	}{}
	for _, entry := range entries {
		list.Manifests = append(list.Manifests, manifest{
			Digest:   entry.digest,
			Platform: platform{Architecture: entry.arch},
		})
	}
	encoded, err := json.Marshal(list)
	h.AssertNil(t, err)
	return encoded
}

func metadataLabelValue(t *testing.T, metadata lock.ImageMetadata) string {
	t.Helper()
	raw, err := json.Marshal(metadata)
	h.AssertNil(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

// registerKit publishes a kit to the fake registry: a manifest list under the
// versioned source reference and, for each platform manifest, an image config
// carrying the kit's metadata label.
func registerKit(t *testing.T, fake *fakes.FakeRegistryClient, name, version string, metadata lock.ImageMetadata, platforms ...platformManifest) {
	t.Helper()
	if len(platforms) == 0 {
		platforms = []platformManifest{{arch: "amd64", digest: testDigest(0xa1)}}
	}
	source := fmt.Sprintf("%s/%s:v%s", testRegistry, name, version)
	fake.Manifests[source] = manifestList(t, platforms...)

	label := metadataLabelValue(t, metadata)
	for _, platform := range platforms {
		ref := fmt.Sprintf("%s/%s@%s", testRegistry, name, platform.digest)
		fake.Configs[ref] = registry.ImageConfig{
			Labels: map[string]string{lock.MetadataLabel: label},
		}
	}
}

// registerSDK publishes an SDK image, which carries no kit metadata and is
// never inspected beyond its manifest.
func registerSDK(t *testing.T, fake *fakes.FakeRegistryClient, name, version string) {
	t.Helper()
	source := fmt.Sprintf("%s/%s:v%s", testRegistry, name, version)
	fake.Manifests[source] = manifestList(t,
		platformManifest{arch: "amd64", digest: testDigest(0x5d)},
		platformManifest{arch: "arm64", digest: testDigest(0x5e)},
	)
}

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := tar.NewWriter(&buf)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		contents := files[name]
		h.AssertNil(t, writer.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Size:     int64(len(contents)),
			Mode:     0644,
		}))
		_, err := writer.Write([]byte(contents))
		h.AssertNil(t, err)
	}
	h.AssertNil(t, writer.Close())
	return buf.Bytes()
}

// writeOCILayout materializes a single-manifest OCI layout at dest whose one
// layer is a tarball of files.
func writeOCILayout(t *testing.T, dest string, files map[string]string) {
	t.Helper()
	layer := tarball(t, files)
	writeOCILayoutWithLayer(t, dest, "application/vnd.oci.image.layer.v1.tar", sha256Digest(layer), layer)
}

func writeOCILayoutWithLayer(t *testing.T, dest, mediaType, layerDigest string, layer []byte) {
	t.Helper()
	type layerDesc struct {
		MediaType string `json:"mediaType"`
		Digest    string `json:"digest"`
	}
	manifest, err := json.Marshal(struct {
		Layers []layerDesc `json:"layers"`
	}{
		Layers: []layerDesc{{MediaType: mediaType, Digest: layerDigest}},
	})
	h.AssertNil(t, err)
	manifestDigest := sha256Digest(manifest)

	index, err := json.Marshal(struct {
		Manifests []struct {
			Digest string `json:"digest"`
		} `json:"manifests"`
	}{
		Manifests: []struct {
			Digest string `json:"digest"`
		}{{Digest: manifestDigest}},
	})
	h.AssertNil(t, err)

	writeBlob(t, dest, layerDigest, layer)
	writeBlob(t, dest, manifestDigest, manifest)
	h.AssertNil(t, os.WriteFile(filepath.Join(dest, "index.json"), index, 0644))
}

func writeBlob(t *testing.T, dest, blobDigest string, contents []byte) {
	t.Helper()
	path := filepath.Join(dest, "blobs", filepath.FromSlash(strings.ReplaceAll(blobDigest, ":", "/")))
	h.AssertNil(t, os.MkdirAll(filepath.Dir(path), 0755))
	h.AssertNil(t, os.WriteFile(path, contents, 0644))
}
