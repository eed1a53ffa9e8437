// Package probe implements uptime checks: HTTP GET probes against a sentinel
// body and presence probes against a guild member's status.
package probe

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// SentinelBody is the exact (trimmed) response an HTTP target must return to
// be counted as up.
const SentinelBody = "<!DOCTYPE html><html><body>Hello Jimmy!</body></html>"

// Probe defaults applied when a target does not override them.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 10
)

// Recognized presence statuses for user:// targets.
var presenceStatuses = map[string]struct{}{
	"online":  {},
	"idle":    {},
	"dnd":     {},
	"offline": {},
}

var slugPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// ErrInvalidTarget indicates a target descriptor failed validation.
var ErrInvalidTarget = errors.New("invalid uptime target")

// Target describes one monitored endpoint. The URI is either http(s):// for a
// sentinel-body GET probe, or user://<guild>/<user>?<status>=1 for a presence probe.
type Target struct {
	Name           string `json:"name"`
	ID             string `json:"id"`
	URI            string `json:"uri"`
	HTTPTimeout    *int64 `json:"http_timeout,omitempty"`
	HTTPMaxRetries *int   `json:"http_max_retries,omitempty"`
}

// Timeout returns the per-target HTTP timeout.
func (t Target) Timeout() time.Duration {
	if t.HTTPTimeout != nil && *t.HTTPTimeout > 0 {
		return time.Duration(*t.HTTPTimeout) * time.Second
	}
	return DefaultTimeout
}

// MaxRetries returns the per-target attempt budget.
func (t Target) MaxRetries() int {
	if t.HTTPMaxRetries != nil && *t.HTTPMaxRetries > 0 {
		return *t.HTTPMaxRetries
	}
	return DefaultMaxRetries
}

// IsHTTP reports whether the target is probed over HTTP.
func (t Target) IsHTTP() bool {
	return strings.HasPrefix(t.URI, "http://") || strings.HasPrefix(t.URI, "https://")
}

// IsPresence reports whether the target is probed via guild presence.
func (t Target) IsPresence() bool {
	return strings.HasPrefix(t.URI, "user://")
}

// Validate checks the slug, name and URI shape.
func (t Target) Validate() error {
	if !slugPattern.MatchString(t.ID) {
		return fmt.Errorf("%w: id %q must be uppercase letters, digits and underscores", ErrInvalidTarget, t.ID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidTarget)
	}
	switch {
	case t.IsHTTP():
		if _, err := url.Parse(t.URI); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
	case t.IsPresence():
		if _, err := ParsePresenceTarget(t.URI); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unsupported uri scheme in %q", ErrInvalidTarget, t.URI)
	}
	return nil
}

// PresenceTarget is the parsed form of a user:// URI: the probe passes when the
// member's presence is one of the allowed statuses.
type PresenceTarget struct {
	GuildID string
	UserID  string
	Allowed map[string]struct{}
}

// AllowsStatus reports whether the given presence counts as up.
func (p PresenceTarget) AllowsStatus(status string) bool {
	_, ok := p.Allowed[strings.ToLower(status)]
	return ok
}

// ParsePresenceTarget parses a user://<guild_id>/<user_id>?<status>=1 URI.
// Unrecognized status keys are rejected; at least one status must be enabled.
func ParsePresenceTarget(raw string) (PresenceTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return PresenceTarget{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "user" {
		return PresenceTarget{}, fmt.Errorf("%w: scheme %q is not user://", ErrInvalidTarget, u.Scheme)
	}

	guildID := u.Host
	userID := strings.Trim(u.Path, "/")
	if guildID == "" || userID == "" || strings.Contains(userID, "/") {
		return PresenceTarget{}, fmt.Errorf("%w: expected user://<guild_id>/<user_id>", ErrInvalidTarget)
	}

	allowed := make(map[string]struct{})
	for key, values := range u.Query() {
		status := strings.ToLower(key)
		if _, known := presenceStatuses[status]; !known {
			return PresenceTarget{}, fmt.Errorf("%w: unknown status flag %q", ErrInvalidTarget, key)
		}
		if len(values) > 0 && values[0] == "1" {
			allowed[status] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return PresenceTarget{}, fmt.Errorf("%w: no presence statuses enabled", ErrInvalidTarget)
	}

	return PresenceTarget{GuildID: guildID, UserID: userID, Allowed: allowed}, nil
}
