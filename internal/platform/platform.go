// Package platform defines the chat-platform collaborator boundary: the
// narrow interfaces the core loops call, plus message formatting helpers.
// Concrete transports live alongside (REST adapter, in-memory fake).
package platform

import (
	"context"
	"errors"
)

// ErrTransport wraps any chat-platform delivery failure. Loops treat it as
// retryable: the side effect is considered not to have happened.
var ErrTransport = errors.New("platform transport error")

// Message is the slice of a platform message the core cares about.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
}

// SendOptions controls audience mentions on an outgoing message or edit.
type SendOptions struct {
	// AllowEveryone permits an @everyone in the body to actually ping.
	AllowEveryone bool
	// SuppressMentions strips all mention behaviour from the message.
	SuppressMentions bool
}

// Announcer emits and maintains messages in named guild channels.
type Announcer interface {
	// SendToChannel posts to the channel with the given name, resolving it
	// within the guild.
	SendToChannel(ctx context.Context, guildID, channelName, content string, opts SendOptions) (Message, error)
	// EditMessage replaces the content of an existing message.
	EditMessage(ctx context.Context, channelID, messageID, content string, opts SendOptions) error
	// RecentMessages returns up to limit messages from the named channel,
	// newest first. A missing channel yields ErrChannelNotFound.
	RecentMessages(ctx context.Context, guildID, channelName string, limit int) ([]Message, error)
	// BotUserID identifies the authenticated bot account.
	BotUserID() string
}

// ErrChannelNotFound indicates the named channel does not exist in the guild.
var ErrChannelNotFound = errors.New("channel not found")

// PresenceSource resolves a guild member's presence status
// (online/idle/dnd/offline). Absent when the runtime lacks the capability.
type PresenceSource interface {
	MemberStatus(ctx context.Context, guildID, userID string) (string, error)
}

// Readiness gates the first productive tick of each loop on the platform
// connection being established.
type Readiness interface {
	Ready() <-chan struct{}
}
