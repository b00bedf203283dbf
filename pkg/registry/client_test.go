package registry_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/random"
	ggcrregistry "github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/heroku/color"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/kitforge/kitforge/pkg/registry"
	h "github.com/kitforge/kitforge/testhelpers"
)

func TestClient(t *testing.T) {
	color.Disable(true)
	defer color.Disable(false)
	spec.Run(t, "registryClient", testClient, spec.Report(report.Terminal{}))
}

func testClient(t *testing.T, when spec.G, it spec.S) {
	var (
		server   *httptest.Server
		repo     string
		client   *registry.Client
		image    v1.Image
		imageRef string
	)

	it.Before(func() {
		server = httptest.NewServer(ggcrregistry.New())
		host := strings.TrimPrefix(server.URL, "http://")
		repo = host + "/acme/core"
		client = registry.NewClient()

		var err error
		image, err = random.Image(1024, 2)
		h.AssertNil(t, err)
		image, err = mutate.Config(image, v1.Config{
			Labels: map[string]string{"dev.kitforge.kit.v1": "some-encoded-metadata"},
		})
		h.AssertNil(t, err)

		ref, err := name.ParseReference(repo + ":v1.0.0")
		h.AssertNil(t, err)
		h.AssertNil(t, remote.Write(ref, image))

		digest, err := image.Digest()
		h.AssertNil(t, err)
		imageRef = repo + "@" + digest.String()
	})

	it.After(func() {
		server.Close()
	})

	when("#GetManifest", func() {
		it("returns the raw manifest bytes", func() {
			manifest, err := client.GetManifest(context.Background(), repo+":v1.0.0")
			h.AssertNil(t, err)

			expected, err := image.RawManifest()
			h.AssertNil(t, err)
			h.AssertEq(t, manifest, expected)
		})

		it("errors on unknown references", func() {
			_, err := client.GetManifest(context.Background(), repo+":v9.9.9")
			h.AssertErrorContains(t, err, "fetching manifest for")
		})
	})

	when("#GetConfig", func() {
		it("returns the config labels", func() {
			config, err := client.GetConfig(context.Background(), imageRef)
			h.AssertNil(t, err)
			h.AssertEq(t, config.Labels["dev.kitforge.kit.v1"], "some-encoded-metadata")
		})
	})

	when("#PullOCIImage", func() {
		it("saves the image as an OCI layout directory", func() {
			dest := filepath.Join(t.TempDir(), "archive")

			h.AssertNil(t, client.PullOCIImage(context.Background(), dest, imageRef))

			h.AssertPathExists(t, filepath.Join(dest, "index.json"))
			h.AssertPathExists(t, filepath.Join(dest, "oci-layout"))
			h.AssertPathExists(t, filepath.Join(dest, "blobs"))
		})
	})
}
