package ports

import "context"

// TransitionEvent describes one committed lifecycle transition.
type TransitionEvent struct {
	VersionID string `json:"versionId"`
	GameID    string `json:"gameId"`
	Version   string `json:"version"`
	From      string `json:"from"`
	To        string `json:"to"`
	Action    string `json:"action"`
	Role      string `json:"role"`
	Actor     string `json:"actor"`
	At        string `json:"at"`
}

// EventPublisher fans lifecycle events out to other systems.
type EventPublisher interface {
	PublishTransition(ctx context.Context, event TransitionEvent) error
}
