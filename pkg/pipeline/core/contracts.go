package core

import "context"

// Artifact is one exported file ready to be stored or offered for download.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// FeedFetcher retrieves the raw instrument master feed for a set of segments.
type FeedFetcher interface {
	FetchMaster(ctx context.Context, segments []string) (string, error)
}

// FetchFunc adapts a function to the FeedFetcher interface.
type FetchFunc func(ctx context.Context, segments []string) (string, error)

func (f FetchFunc) FetchMaster(ctx context.Context, segments []string) (string, error) {
	return f(ctx, segments)
}

// ArtifactSink persists an artifact and reports where it was written.
type ArtifactSink interface {
	Store(ctx context.Context, a Artifact) (string, error)
}
