// Package domain contains persistence models for cached pulse content.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ContentRecord stores one fetched payload for a category. Records are
// immutable after insert except for the is_active flag.
type ContentRecord struct {
	ID           snowflake.ID   `gorm:"primaryKey"`
	Category     string         `gorm:"type:text;not null;index:idx_content_category_active"`
	Payload      datatypes.JSON `gorm:"type:jsonb;not null"`
	GeneratedAt  time.Time      `gorm:"not null;index"`
	ExpiresAt    time.Time      `gorm:"not null"`
	IsActive     bool           `gorm:"not null;index:idx_content_category_active"`
	Provider     string         `gorm:"type:text;not null"`
	Model        string         `gorm:"type:text;not null"`
	TokensInput  int64          `gorm:"not null;default:0"`
	TokensOutput int64          `gorm:"not null;default:0"`
	CostUSD      float64        `gorm:"not null;default:0"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ContentRecord) TableName() string { return "content_records" }

// DecodePayload unmarshals the stored JSON document.
func (r *ContentRecord) DecodePayload() (Payload, error) {
	var payload Payload
	if len(r.Payload) == 0 {
		return payload, nil
	}
	err := json.Unmarshal(r.Payload, &payload)
	return payload, err
}

// Expired reports whether the record's freshness window has passed.
func (r *ContentRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// UsageLog records one fetch attempt, success or failure. Rows are never
// touched by the cache lifecycle.
type UsageLog struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Category      string       `gorm:"type:text;not null;index"`
	Provider      string       `gorm:"type:text;not null"`
	Model         string       `gorm:"type:text;not null"`
	TokensInput   int64        `gorm:"not null;default:0"`
	TokensOutput  int64        `gorm:"not null;default:0"`
	TokensTotal   int64        `gorm:"not null;default:0"`
	CostUSD       float64      `gorm:"not null;default:0"`
	Success       bool         `gorm:"not null"`
	FailureReason string       `gorm:"type:text"`
	DurationMS    int64        `gorm:"not null;default:0"`
	CreatedAt     time.Time    `gorm:"not null;index;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageLog) TableName() string { return "usage_logs" }

// MonthStats aggregates usage since the start of the current month.
type MonthStats struct {
	Since        time.Time `json:"since"`
	Calls        int64     `json:"calls"`
	Successes    int64     `json:"successes"`
	Failures     int64     `json:"failures"`
	TokensInput  int64     `json:"tokens_input"`
	TokensOutput int64     `json:"tokens_output"`
	CostUSD      float64   `json:"cost_usd"`
}
