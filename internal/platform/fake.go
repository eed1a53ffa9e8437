package platform

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Fake is an in-memory Announcer/PresenceSource used by tests and by
// CONNECT_MODE=2 dry runs. Messages are stored per guild/channel pair,
// newest last.
type Fake struct {
	mu       sync.Mutex
	botID    string
	nextID   int
	channels map[string][]Message
	statuses map[string]string
	ready    chan struct{}

	// SendErr, when set, makes every send/edit fail with it.
	SendErr error
}

// NewFake builds a ready fake with the given bot user id.
func NewFake(botID string) *Fake {
	ready := make(chan struct{})
	close(ready)
	return &Fake{
		botID:    botID,
		channels: make(map[string][]Message),
		statuses: make(map[string]string),
		ready:    ready,
	}
}

func (f *Fake) key(guildID, channelName string) string {
	return guildID + "/" + channelName
}

// BotUserID implements Announcer.
func (f *Fake) BotUserID() string { return f.botID }

// Ready implements Readiness; the fake is always ready.
func (f *Fake) Ready() <-chan struct{} { return f.ready }

// SendToChannel implements Announcer.
func (f *Fake) SendToChannel(_ context.Context, guildID, channelName, content string, _ SendOptions) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrTransport, f.SendErr)
	}

	f.nextID++
	msg := Message{
		ID:        strconv.Itoa(f.nextID),
		ChannelID: f.key(guildID, channelName),
		AuthorID:  f.botID,
		Content:   content,
	}
	f.channels[msg.ChannelID] = append(f.channels[msg.ChannelID], msg)
	return msg, nil
}

// EditMessage implements Announcer.
func (f *Fake) EditMessage(_ context.Context, channelID, messageID, content string, _ SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return fmt.Errorf("%w: %v", ErrTransport, f.SendErr)
	}

	msgs := f.channels[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Content = content
			return nil
		}
	}
	return fmt.Errorf("%w: message %s not found", ErrTransport, messageID)
}

// RecentMessages implements Announcer, returning newest first.
func (f *Fake) RecentMessages(_ context.Context, guildID, channelName string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs, ok := f.channels[f.key(guildID, channelName)]
	if !ok {
		return nil, ErrChannelNotFound
	}

	var out []Message
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// SeedChannel marks a channel as existing without posting to it.
func (f *Fake) SeedChannel(guildID, channelName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(guildID, channelName)
	if _, ok := f.channels[key]; !ok {
		f.channels[key] = []Message{}
	}
}

// Channel returns the messages posted to a channel, oldest first.
func (f *Fake) Channel(guildID, channelName string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.channels[f.key(guildID, channelName)]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// SetStatus sets a member's presence for PresenceSource lookups.
func (f *Fake) SetStatus(guildID, userID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[f.key(guildID, userID)] = status
}

// MemberStatus implements PresenceSource; unknown members are offline.
func (f *Fake) MemberStatus(_ context.Context, guildID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[f.key(guildID, userID)]
	if !ok {
		return "offline", nil
	}
	return status, nil
}
