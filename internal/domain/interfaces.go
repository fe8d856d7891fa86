package domain

import "context"

// Publisher serialises UiState records to the snapshot file and the
// event log.
type Publisher interface {
	Publish(ctx context.Context, state UiState) error
	EnsureDirs() error
}

// ArtResolver turns an art URL into a local file path and materialises it
// as the current-cover file.
type ArtResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// MediaController invokes the external media-control utility for a given
// player: transport verbs and the streaming/one-shot metadata reads.
type MediaController interface {
	PlayPause(ctx context.Context, player PlayerID) error
	Next(ctx context.Context, player PlayerID) error
	Previous(ctx context.Context, player PlayerID) error
	SetPosition(ctx context.Context, player PlayerID, arg string) error
	QuickMetadata(ctx context.Context, player PlayerID) (FollowerLine, error)
	StreamMetadata(ctx context.Context, player PlayerID) (lines <-chan string, done <-chan error, stop func(), err error)
}

// PropertyReader queries the external message-bus property-reader utility.
type PropertyReader interface {
	BoolProperty(ctx context.Context, player PlayerID, iface, prop string) (bool, error)
}
