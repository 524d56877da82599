package perf

import "time"

// Sample is one timed operation.
type Sample struct {
	ID             uint    `json:"-" gorm:"primaryKey"`
	RequestID      string  `json:"requestId" gorm:"column:request_id"`
	Endpoint       string  `json:"endpoint" gorm:"not null;index"`
	Method         string  `json:"method" gorm:"not null"`
	ResponseTimeMs float64 `json:"responseTimeMs" gorm:"column:response_time_ms;not null"`
	CacheHit       bool    `json:"cacheHit" gorm:"column:cache_hit"`
	StatusCode     int     `json:"statusCode" gorm:"column:status_code"`
	// Timestamp is unix milliseconds so range scans compare integers.
	Timestamp     int64    `json:"timestamp" gorm:"not null;index"`
	DBQueries     *int     `json:"dbQueries,omitempty" gorm:"column:db_queries"`
	DBQueryTimeMs *float64 `json:"dbQueryTimeMs,omitempty" gorm:"column:db_query_time_ms"`
	ContentLength *int64   `json:"contentLength,omitempty" gorm:"column:content_length"`
}

// TableName specifies the table name for Sample model
func (Sample) TableName() string {
	return "performance_metrics"
}

func (s Sample) Time() time.Time { return time.UnixMilli(s.Timestamp) }
