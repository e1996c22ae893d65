package adapter

import (
	"context"
)

// TurnHandler runs one conversation turn and returns the reply text.
// Adapters call it with the platform-native conversation identifier as the
// thread ID; the engine owns all session state keyed by that identifier.
// This keeps adapters free of any dependency on the agent package.
type TurnHandler func(ctx context.Context, source string, threadID string, userID string, text string) (string, error)

// InputAdapter defines the interface for adapters that receive messages from
// external platforms.
type InputAdapter interface {
	// Name returns the adapter name (e.g. "slack", "telegram").
	Name() string

	// Start begins listening for messages (e.g. starts a server or
	// long-poll). Must respect context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Health checks if the adapter is healthy and connected.
	Health(ctx context.Context) error
}

// OutputAdapter defines the interface for adapters that deliver replies to
// external platforms.
type OutputAdapter interface {
	// Name returns the adapter name.
	Name() string

	// Send delivers a reply. threadID maps to the platform-specific
	// identifier (channel ID, chat ID, etc.).
	Send(ctx context.Context, threadID string, content string) error

	// Health checks if the adapter is healthy and can send messages.
	Health(ctx context.Context) error
}
