package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RESTClient is an Announcer over the chat platform's HTTP API. It carries no
// gateway connection, so presence lookups are unavailable in this mode.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger

	botID string
	ready chan struct{}

	mu       sync.Mutex
	channels map[string]string // guildID/name -> channel id
}

type restChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

type restMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  struct {
		ID string `json:"id"`
	} `json:"author"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type messagePayload struct {
	Content         string           `json:"content"`
	AllowedMentions *allowedMentions `json:"allowed_mentions,omitempty"`
}

// NewRESTClient authenticates against the platform API and returns a ready client.
func NewRESTClient(baseURL, token string, logger zerolog.Logger) (*RESTClient, error) {
	c := &RESTClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger.With().Str("component", "platform_rest").Logger(),
		ready:    make(chan struct{}),
		channels: make(map[string]string),
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := c.do(context.Background(), http.MethodGet, "/users/@me", nil, &me); err != nil {
		return nil, fmt.Errorf("failed to authenticate with platform: %w", err)
	}
	c.botID = me.ID
	close(c.ready)

	return c, nil
}

// BotUserID implements Announcer.
func (c *RESTClient) BotUserID() string { return c.botID }

// Ready implements Readiness. The REST client is ready as soon as it
// authenticates.
func (c *RESTClient) Ready() <-chan struct{} { return c.ready }

// SendToChannel implements Announcer.
func (c *RESTClient) SendToChannel(ctx context.Context, guildID, channelName, content string, opts SendOptions) (Message, error) {
	channelID, err := c.resolveChannel(ctx, guildID, channelName)
	if err != nil {
		return Message{}, err
	}

	var created restMessage
	payload := messagePayload{Content: content, AllowedMentions: mentionsFor(opts)}
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, payload, &created); err != nil {
		return Message{}, err
	}

	return Message{ID: created.ID, ChannelID: channelID, AuthorID: c.botID, Content: content}, nil
}

// EditMessage implements Announcer.
func (c *RESTClient) EditMessage(ctx context.Context, channelID, messageID, content string, opts SendOptions) error {
	payload := messagePayload{Content: content, AllowedMentions: mentionsFor(opts)}
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}

// RecentMessages implements Announcer, newest first.
func (c *RESTClient) RecentMessages(ctx context.Context, guildID, channelName string, limit int) ([]Message, error) {
	channelID, err := c.resolveChannel(ctx, guildID, channelName)
	if err != nil {
		return nil, err
	}

	var raw []restMessage
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, Message{
			ID:        m.ID,
			ChannelID: channelID,
			AuthorID:  m.Author.ID,
			Content:   m.Content,
		})
	}
	return messages, nil
}

func (c *RESTClient) resolveChannel(ctx context.Context, guildID, channelName string) (string, error) {
	key := guildID + "/" + channelName

	c.mu.Lock()
	cached, ok := c.channels[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var channels []restChannel
	path := fmt.Sprintf("/guilds/%s/channels", url.PathEscape(guildID))
	if err := c.do(ctx, http.MethodGet, path, nil, &channels); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.channels[guildID+"/"+ch.Name] = ch.ID
	}
	if id, ok := c.channels[key]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q in guild %s", ErrChannelNotFound, channelName, guildID)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrTransport, method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	return nil
}

func mentionsFor(opts SendOptions) *allowedMentions {
	if opts.SuppressMentions {
		return &allowedMentions{Parse: []string{}}
	}
	if opts.AllowEveryone {
		return &allowedMentions{Parse: []string{"everyone", "users"}}
	}
	return &allowedMentions{Parse: []string{"users"}}
}
