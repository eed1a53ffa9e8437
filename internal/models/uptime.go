package models

import "time"

// UptimeEntry is one append-only probe observation. ResponseTimeMS is nil for
// probes that cannot measure latency (presence checks, transport failures).
type UptimeEntry struct {
	EntryID        uint      `gorm:"primaryKey" json:"entry_id"`
	TargetID       string    `gorm:"size:128;index;not null" json:"target_id"`
	Target         string    `gorm:"size:128;not null" json:"target"`
	IsUp           bool      `gorm:"not null" json:"is_up"`
	ResponseTimeMS *int64    `json:"response_time_ms"`
	Notes          string    `gorm:"type:text" json:"notes"`
	Timestamp      time.Time `gorm:"index;not null" json:"timestamp"`
}
