package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry TTL缓存条目
// expires_at 为空表示永不过期；过期条目对读取不可见，由下次读取惰性清理
type CacheEntry struct {
	CacheKey  string         `gorm:"primaryKey;type:varchar(255)" json:"cache_key"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at,omitempty"`
}

// TableName 指定表名
func (CacheEntry) TableName() string {
	return "cache_entries"
}
