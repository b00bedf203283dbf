package fakes

import (
	"context"

	"github.com/kitforge/kitforge/pkg/client"
	"github.com/kitforge/kitforge/pkg/lock"
)

// FakeKitforgeClient records the options commands pass through to the client
// API.
type FakeKitforgeClient struct {
	UpdateOpts []client.UpdateOptions
	UpdateLock lock.Lock
	UpdateErr  error

	FetchOpts []client.FetchOptions
	FetchErr  error
}

func (f *FakeKitforgeClient) Update(_ context.Context, opts client.UpdateOptions) (lock.Lock, error) {
	f.UpdateOpts = append(f.UpdateOpts, opts)
	return f.UpdateLock, f.UpdateErr
}

func (f *FakeKitforgeClient) Fetch(_ context.Context, opts client.FetchOptions) error {
	f.FetchOpts = append(f.FetchOpts, opts)
	return f.FetchErr
}
