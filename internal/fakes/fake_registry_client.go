package fakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/pkg/registry"
)

// FakeRegistryClient serves canned manifests and configs keyed by reference
// and records every call, for driving the lock subsystem in tests without a
// registry.
type FakeRegistryClient struct {
	mu sync.Mutex

	Manifests map[string][]byte
	Configs   map[string]registry.ImageConfig

	// PullFunc, when set, is invoked by PullOCIImage to materialize an
	// archive at dest.
	PullFunc func(dest, ref string) error

	ManifestCalls []string
	ConfigCalls   []string
	PullCalls     []string
}

func NewFakeRegistryClient() *FakeRegistryClient {
	return &FakeRegistryClient{
		Manifests: map[string][]byte{},
		Configs:   map[string]registry.ImageConfig{},
	}
}

func (f *FakeRegistryClient) GetManifest(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ManifestCalls = append(f.ManifestCalls, ref)
	manifest, ok := f.Manifests[ref]
	if !ok {
		return nil, errors.Errorf("fake registry has no manifest for %s", ref)
	}
	return manifest, nil
}

func (f *FakeRegistryClient) GetConfig(_ context.Context, ref string) (registry.ImageConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ConfigCalls = append(f.ConfigCalls, ref)
	config, ok := f.Configs[ref]
	if !ok {
		return registry.ImageConfig{}, errors.Errorf("fake registry has no config for %s", ref)
	}
	return config, nil
}

func (f *FakeRegistryClient) PullOCIImage(_ context.Context, dest, ref string) error {
	f.mu.Lock()
	f.PullCalls = append(f.PullCalls, ref)
	pull := f.PullFunc
	f.mu.Unlock()

	if pull != nil {
		return pull(dest, ref)
	}
	return nil
}
