/*
Package client provides kitforge's functionality as a library through a go
api: resolving a project's kit dependencies into a lock file and fetching the
locked kit contents for a build to consume.
*/
package client

import (
	"context"
	"os"

	"github.com/kitforge/kitforge/pkg/lock"
	"github.com/kitforge/kitforge/pkg/logging"
	"github.com/kitforge/kitforge/pkg/project"
	"github.com/kitforge/kitforge/pkg/registry"
)

// Client is an orchestration object; it carries the logger and registry
// client every operation needs. Configure it through Option functions.
type Client struct {
	logger         logging.Logger
	registryClient lock.RegistryClient
}

type Option func(*Client)

// WithLogger overrides the default, stderr-bound logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRegistryClient overrides the registry client. Mostly for testing.
func WithRegistryClient(registryClient lock.RegistryClient) Option {
	return func(c *Client) {
		c.registryClient = registryClient
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{}
	for _, opt := range opts {
		opt(client)
	}
	if client.logger == nil {
		client.logger = logging.NewLogWithWriters(os.Stdout, os.Stderr)
	}
	if client.registryClient == nil {
		client.registryClient = registry.NewClient()
	}
	return client
}

// UpdateOptions configures Client.Update.
type UpdateOptions struct {
	// ProjectPath is the path to Kitforge.toml. When empty, parent
	// directories of the working directory are searched.
	ProjectPath string
}

// Update resolves the project's declared dependencies and writes a fresh
// lock file.
func (c *Client) Update(ctx context.Context, opts UpdateOptions) (lock.Lock, error) {
	proj, err := project.LoadOrFind(opts.ProjectPath)
	if err != nil {
		return lock.Lock{}, err
	}
	return lock.Create(ctx, c.registryClient, proj, c.logger)
}

// FetchOptions configures Client.Fetch.
type FetchOptions struct {
	// ProjectPath is the path to Kitforge.toml. When empty, parent
	// directories of the working directory are searched.
	ProjectPath string

	// Arch selects which platform slice of each kit to extract. Accepts OCI
	// and uname-style names.
	Arch string
}

// Fetch verifies the lock file against a fresh resolution and materializes
// every locked kit for the requested architecture.
func (c *Client) Fetch(ctx context.Context, opts FetchOptions) error {
	proj, err := project.LoadOrFind(opts.ProjectPath)
	if err != nil {
		return err
	}
	arch, err := lock.ParseArchitecture(opts.Arch)
	if err != nil {
		return err
	}
	locked, err := lock.Load(ctx, c.registryClient, proj, c.logger)
	if err != nil {
		return err
	}
	return locked.Fetch(ctx, c.registryClient, proj, arch, c.logger)
}
