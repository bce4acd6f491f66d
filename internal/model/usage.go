package model

import "time"

// UsageRecord is one append-only row per billable call. A record exists if
// and only if the corresponding quota reservation was not refunded.
type UsageRecord struct {
	ID                   int64     `db:"id" json:"id"`
	Timestamp            time.Time `db:"created_at" json:"timestamp"`
	UserID               int64     `db:"user_id" json:"user_id"`
	ServiceName          string    `db:"service_name" json:"service_name"`
	TokenCount           int       `db:"token_count" json:"token_count"`
	InputTokens          int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens         int       `db:"output_tokens" json:"output_tokens"`
	CostUSD              float64   `db:"cost_usd" json:"cost_usd"`
	ContentType          string    `db:"content_type" json:"content_type"`
	ContentPreview       string    `db:"content_preview" json:"content_preview"`
	VideoDurationMinutes *int      `db:"video_duration_minutes" json:"video_duration_minutes,omitempty"`
	ParentRequestID      *int64    `db:"parent_request_id" json:"parent_request_id,omitempty"`
}

// Service names recorded on usage rows.
const (
	ServiceTranslation    = "translation"
	ServiceYoutubeSummary = "youtube_summary"
)
