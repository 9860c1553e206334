package models

import (
	"time"
)

// Represents one forwarded request in the append-only usage log
type UsageRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	Endpoint       string    `gorm:"index" json:"endpoint"`
	ClientIP       string    `gorm:"index" json:"client_ip"`
	AppID          string    `json:"app_id,omitempty"`
	StatusCode     int       `gorm:"index" json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	DayCount       int64     `json:"day_count"` // coarse per-day-per-key count at record time
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
