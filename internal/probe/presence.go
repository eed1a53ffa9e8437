package probe

import (
	"context"
	"fmt"

	"github.com/noah-isme/cohort-assistant/internal/platform"
)

// PresenceNotes is the fixed observation note for presence probes, which
// cannot measure latency.
const PresenceNotes = "*Unable to monitor response time, not a HTTP request.*"

// PresenceProber resolves user:// targets against the guild member presence
// capability.
type PresenceProber struct {
	source platform.PresenceSource
}

// NewPresenceProber wraps a presence source; source may be nil when the
// capability is absent.
func NewPresenceProber(source platform.PresenceSource) *PresenceProber {
	return &PresenceProber{source: source}
}

// Available reports whether presence probing is possible in this runtime.
func (p *PresenceProber) Available() bool {
	return p.source != nil
}

// Check resolves the member and compares their presence to the allowed set.
func (p *PresenceProber) Check(ctx context.Context, target PresenceTarget) (Result, error) {
	if p.source == nil {
		return Result{}, fmt.Errorf("presence capability unavailable")
	}

	status, err := p.source.MemberStatus(ctx, target.GuildID, target.UserID)
	if err != nil {
		return Result{}, err
	}

	return Result{IsUp: target.AllowsStatus(status), Notes: PresenceNotes}, nil
}
