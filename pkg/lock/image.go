package lock

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/kitforge/kitforge/pkg/project"
)

// LockedImage is a kit or SDK dependency pinned to the content it resolved
// to: a fully qualified registry source and the digest of its manifest.
type LockedImage struct {
	Name    string          `toml:"name" json:"name"`
	Version project.Version `toml:"version" json:"version"`
	Vendor  string          `toml:"vendor" json:"vendor"`
	Source  string          `toml:"source" json:"source"`
	Digest  string          `toml:"digest" json:"digest"`

	// manifest holds the raw manifest bytes fetched during resolution. It is
	// never persisted; a LockedImage read back from a lock file has none.
	manifest []byte
}

// NewLockedImage resolves image under vendor's registry, fetching its
// manifest and fingerprinting it.
func NewLockedImage(ctx context.Context, client RegistryClient, vendor project.Vendor, image project.Image) (LockedImage, error) {
	source := fmt.Sprintf("%s/%s:v%s", vendor.Registry, image.Name, image.Version.String())
	manifest, err := client.GetManifest(ctx, source)
	if err != nil {
		return LockedImage{}, err
	}

	// The digest of the manifest bytes is the image's identity for locking
	// and caching purposes.
	sum := sha256.Sum256(manifest)

	return LockedImage{
		Name:     image.Name.String(),
		Version:  image.Version,
		Vendor:   image.Vendor.String(),
		Source:   source,
		Digest:   base64.StdEncoding.EncodeToString(sum[:]),
		manifest: manifest,
	}, nil
}

// Equals reports resolved identity: two locked images are the same only when
// they point at the same source and carry the same digest. A registry-side
// content change breaks equality even if the declaration did not move.
func (l LockedImage) Equals(other LockedImage) bool {
	return l.Source == other.Source && l.Digest == other.Digest
}

// Key identifies the logical dependency. It deliberately excludes source and
// digest so a scan over keyed images can surface the same dependency resolved
// to different content.
func (l LockedImage) Key() string {
	return fmt.Sprintf("%s-%s@%s", l.Name, l.Version.String(), l.Vendor)
}

// Manifest returns the raw manifest bytes fetched at resolution time, or nil
// for images loaded from a lock file.
func (l LockedImage) Manifest() []byte {
	return l.manifest
}

// DigestURI rewrites the versioned source reference to address a specific
// manifest by digest.
func (l LockedImage) DigestURI(digest string) string {
	return strings.Replace(l.Source, ":v"+l.Version.String(), "@"+digest, 1)
}

func (l LockedImage) String() string {
	return fmt.Sprintf("%s-%s@%s (%s)", l.Name, l.Version.String(), l.Vendor, l.Source)
}
