package dto

import (
	"time"

	"github.com/noah-isme/cohort-assistant/internal/models"
)

// ObservationResponse renders one persisted probe observation.
type ObservationResponse struct {
	EntryID        uint      `json:"entry_id"`
	TargetID       string    `json:"target_id"`
	Target         string    `json:"target"`
	IsUp           bool      `json:"is_up"`
	ResponseTimeMS *int64    `json:"response_time_ms"`
	Notes          string    `json:"notes"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewObservationResponse maps a model row.
func NewObservationResponse(e models.UptimeEntry) ObservationResponse {
	return ObservationResponse{
		EntryID:        e.EntryID,
		TargetID:       e.TargetID,
		Target:         e.Target,
		IsUp:           e.IsUp,
		ResponseTimeMS: e.ResponseTimeMS,
		Notes:          e.Notes,
		Timestamp:      e.Timestamp,
	}
}

// NewObservationResponseSlice maps a slice of rows.
func NewObservationResponseSlice(entries []models.UptimeEntry) []ObservationResponse {
	out := make([]ObservationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewObservationResponse(e))
	}
	return out
}

// UptimeStats summarises the observations for one target over a look-back window.
type UptimeStats struct {
	TargetID          string        `json:"target_id"`
	TargetName        string        `json:"target_name"`
	LookBackDays      int           `json:"look_back_days"`
	FirstCheck        *time.Time    `json:"first_check,omitempty"`
	TotalCount        int           `json:"total_count"`
	OnlineCount       int           `json:"online_count"`
	OfflineCount      int           `json:"offline_count"`
	UptimePercent     float64       `json:"uptime_percent"`
	AverageResponseMS float64       `json:"average_response_ms"`
	LastOnline        *time.Time    `json:"last_online,omitempty"`
	LastOffline       *time.Time    `json:"last_offline,omitempty"`
	Overall           UptimeOverall `json:"overall"`
	CacheHit          bool          `json:"cache_hit"`
}

// UptimeOverall summarises the same window across every monitored target.
type UptimeOverall struct {
	Targets       int     `json:"targets"`
	TotalCount    int     `json:"total_count"`
	OnlineCount   int     `json:"online_count"`
	OfflineCount  int     `json:"offline_count"`
	UptimePercent float64 `json:"uptime_percent"`
}

// TargetCreateRequest is the monitors-add payload.
type TargetCreateRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=128"`
	ID             string `json:"id" validate:"required,min=2,max=128"`
	URI            string `json:"uri" validate:"required"`
	HTTPTimeout    *int64 `json:"http_timeout" validate:"omitempty,gt=0"`
	HTTPMaxRetries *int   `json:"http_max_retries" validate:"omitempty,gt=0"`
}
