package slideshow

import (
	"context"
	"fmt"
	"io"
)

// Source lists the slideshow media and fetches individual files.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, name string, dst io.WriterAt) error
}

// MediaClient is the part of the backend client a BackendSource uses.
type MediaClient interface {
	ListMedia(ctx context.Context) ([]string, error)
	FetchMedia(ctx context.Context, name string, w io.Writer) error
}

// BackendSource serves media from the PC backend's slideshow endpoints.
type BackendSource struct {
	client MediaClient
}

func NewBackendSource(client MediaClient) *BackendSource {
	return &BackendSource{client: client}
}

func (b *BackendSource) List(ctx context.Context) ([]string, error) {
	names, err := b.client.ListMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend media list: %w", err)
	}
	return names, nil
}

func (b *BackendSource) Fetch(ctx context.Context, name string, dst io.WriterAt) error {
	return b.client.FetchMedia(ctx, name, io.NewOffsetWriter(dst, 0))
}
