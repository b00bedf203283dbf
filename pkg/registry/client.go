// Package registry talks to container registries on kitforge's behalf. The
// capability surface is deliberately small: read a manifest, read the config
// labels, and save an image as an OCI layout directory.
package registry

import (
	"context"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
)

// ImageConfig is the subset of an OCI image config kitforge consumes.
type ImageConfig struct {
	Labels map[string]string
}

// Client fetches image metadata and content from remote registries using the
// ambient docker keychain for credentials.
type Client struct {
	keychain  authn.Keychain
	transport http.RoundTripper
}

type ClientOption func(*Client)

// WithKeychain overrides the credential source.
func WithKeychain(keychain authn.Keychain) ClientOption {
	return func(c *Client) {
		c.keychain = keychain
	}
}

// WithTransport overrides the HTTP transport used for registry calls.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = transport
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		keychain:  authn.DefaultKeychain,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// GetManifest returns the raw manifest bytes for ref. For a multi-platform
// image this is the manifest list, not any platform manifest.
func (c *Client) GetManifest(ctx context.Context, ref string) ([]byte, error) {
	reference, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing reference %s", style.Symbol(ref))
	}
	descriptor, err := remote.Get(reference, c.remoteOptions(ctx)...)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching manifest for %s", style.Symbol(ref))
	}
	return descriptor.Manifest, nil
}

// GetConfig returns the config labels for ref, which must point at a single
// platform manifest.
func (c *Client) GetConfig(ctx context.Context, ref string) (ImageConfig, error) {
	reference, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		return ImageConfig{}, errors.Wrapf(err, "parsing reference %s", style.Symbol(ref))
	}
	image, err := remote.Image(reference, c.remoteOptions(ctx)...)
	if err != nil {
		return ImageConfig{}, errors.Wrapf(err, "fetching image %s", style.Symbol(ref))
	}
	configFile, err := image.ConfigFile()
	if err != nil {
		return ImageConfig{}, errors.Wrapf(err, "fetching config for %s", style.Symbol(ref))
	}
	return ImageConfig{Labels: configFile.Config.Labels}, nil
}

// PullOCIImage saves the image at ref into dest as an OCI layout directory
// (index.json plus blobs).
func (c *Client) PullOCIImage(ctx context.Context, dest, ref string) error {
	reference, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		return errors.Wrapf(err, "parsing reference %s", style.Symbol(ref))
	}
	image, err := remote.Image(reference, c.remoteOptions(ctx)...)
	if err != nil {
		return errors.Wrapf(err, "fetching image %s", style.Symbol(ref))
	}
	path, err := layout.Write(dest, empty.Index)
	if err != nil {
		return errors.Wrapf(err, "initializing oci layout at %s", style.Symbol(dest))
	}
	if err := path.AppendImage(image); err != nil {
		return errors.Wrapf(err, "saving image %s to %s", style.Symbol(ref), style.Symbol(dest))
	}
	return nil
}

func (c *Client) remoteOptions(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(c.keychain),
		remote.WithTransport(c.transport),
	}
}
