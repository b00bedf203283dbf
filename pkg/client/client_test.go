package client_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/heroku/color"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/kitforge/kitforge/internal/fakes"
	"github.com/kitforge/kitforge/pkg/client"
	"github.com/kitforge/kitforge/pkg/lock"
	"github.com/kitforge/kitforge/pkg/logging"
	"github.com/kitforge/kitforge/pkg/project"
	"github.com/kitforge/kitforge/pkg/registry"
	h "github.com/kitforge/kitforge/testhelpers"
)

func TestClient(t *testing.T) {
	color.Disable(true)
	defer color.Disable(false)
	spec.Run(t, "Client", testClient, spec.Parallel(), spec.Report(report.Terminal{}))
}

func testClient(t *testing.T, when spec.G, it spec.S) {
	const testRegistry = "registry.example.com/acme"
	const platformDigest = "sha256:1111111111111111111111111111111111111111111111111111111111111111"

	var (
		fake        *fakes.FakeRegistryClient
		subject     *client.Client
		tmpDir      string
		projectPath string
	)

	it.Before(func() {
		fake = fakes.NewFakeRegistryClient()
		subject = client.NewClient(
			client.WithLogger(logging.NewLogWithWriters(&bytes.Buffer{}, &bytes.Buffer{})),
			client.WithRegistryClient(fake),
		)
		tmpDir = t.TempDir()

		projectPath = filepath.Join(tmpDir, project.ConfigFile)
		h.AssertNil(t, os.WriteFile(projectPath, []byte(`
schema-version = 1

[vendor.acme]
registry = "registry.example.com/acme"

[sdk]
name = "build-sdk"
version = "2.0.0"
vendor = "acme"

[[kit]]
name = "alpha"
version = "1.0.0"
vendor = "acme"
`), 0644))

		manifest := fmt.Sprintf(`{"manifests":[{"digest":%q,"platform":{"architecture":"amd64"}}]}`, platformDigest)
		fake.Manifests[testRegistry+"/alpha:v1.0.0"] = []byte(manifest)
		fake.Manifests[testRegistry+"/build-sdk:v2.0.0"] = []byte(manifest)

		metadata, err := json.Marshal(lock.ImageMetadata{
			Name: "alpha",
			SDK: &project.Image{
				Name:    "build-sdk",
				Version: project.MustVersion("2.0.0"),
				Vendor:  "acme",
			},
		})
		h.AssertNil(t, err)
		fake.Configs[testRegistry+"/alpha@"+platformDigest] = registry.ImageConfig{
			Labels: map[string]string{lock.MetadataLabel: base64.StdEncoding.EncodeToString(metadata)},
		}
	})

	when("#Update", func() {
		it("writes a lock file next to the project file", func() {
			locked, err := subject.Update(context.Background(), client.UpdateOptions{ProjectPath: projectPath})
			h.AssertNil(t, err)

			h.AssertEq(t, len(locked.Kit), 1)
			h.AssertPathExists(t, filepath.Join(tmpDir, lock.LockFile))
		})
	})

	when("#Fetch", func() {
		it("requires an update before the first fetch", func() {
			err := subject.Fetch(context.Background(), client.FetchOptions{ProjectPath: projectPath, Arch: "x86_64"})

			h.AssertError(t, err, "Kitforge.lock does not exist, please run 'kitforge update' first")
		})

		it("rejects unknown architectures", func() {
			err := subject.Fetch(context.Background(), client.FetchOptions{ProjectPath: projectPath, Arch: "mips"})

			h.AssertError(t, err, "unsupported architecture 'mips'")
		})

		it("extracts the locked kits after an update", func() {
			_, err := subject.Update(context.Background(), client.UpdateOptions{ProjectPath: projectPath})
			h.AssertNil(t, err)

			const manifestDigest = "sha256:2222222222222222222222222222222222222222222222222222222222222222"
			fake.PullFunc = func(dest, ref string) error {
				// A layout with an empty layer list is enough to drive the
				// fetch path end to end.
				blobDir := filepath.Join(dest, "blobs", "sha256")
				if err := os.MkdirAll(blobDir, 0755); err != nil {
					return err
				}
				if err := os.WriteFile(filepath.Join(blobDir, manifestDigest[len("sha256:"):]), []byte(`{"layers":[]}`), 0644); err != nil {
					return err
				}
				return os.WriteFile(filepath.Join(dest, "index.json"),
					[]byte(fmt.Sprintf(`{"manifests":[{"digest":%q}]}`, manifestDigest)), 0644)
			}

			h.AssertNil(t, subject.Fetch(context.Background(), client.FetchOptions{ProjectPath: projectPath, Arch: "x86_64"}))

			h.AssertEq(t, len(fake.PullCalls), 1)
			h.AssertEq(t, fake.PullCalls[0], testRegistry+"/alpha@"+platformDigest)

			marker, err := os.ReadFile(filepath.Join(tmpDir, "build", "external-kits", "acme", "alpha", "amd64", "digest"))
			h.AssertNil(t, err)
			h.AssertEq(t, string(marker), platformDigest)
			h.AssertPathExists(t, filepath.Join(tmpDir, "build", "external-kits", "external-kit-metadata.json"))
		})
	})
}
