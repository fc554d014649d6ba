package repo

import (
	"context"
	"time"

	"github.com/go-orz/orz"
	"github.com/gurtprime/merlinCLI/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewCacheRepo(db *gorm.DB) *CacheRepo {
	return &CacheRepo{
		Repository: orz.NewRepository[models.CacheEntry, string](db),
	}
}

type CacheRepo struct {
	orz.Repository[models.CacheEntry, string]
}

// FindByKey 按键查询缓存条目
func (r CacheRepo) FindByKey(ctx context.Context, key string) (models.CacheEntry, error) {
	var entry models.CacheEntry
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("cache_key = ?", key).
		First(&entry).Error
	return entry, err
}

// Upsert 写入或覆盖缓存条目
func (r CacheRepo) Upsert(ctx context.Context, entry *models.CacheEntry) error {
	db := r.GetDB(ctx)
	return db.Table(r.GetTableName()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at"}),
		}).
		Create(entry).Error
}

// DeleteByKey 删除指定键
func (r CacheRepo) DeleteByKey(ctx context.Context, key string) error {
	db := r.GetDB(ctx)
	return db.Table(r.GetTableName()).
		Where("cache_key = ?", key).
		Delete(&models.CacheEntry{}).Error
}

// DeleteAll 清空缓存表
func (r CacheRepo) DeleteAll(ctx context.Context) error {
	db := r.GetDB(ctx)
	return db.Table(r.GetTableName()).
		Where("1 = 1").
		Delete(&models.CacheEntry{}).Error
}

// DeleteExpired 清理已过期条目
func (r CacheRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	db := r.GetDB(ctx)
	return db.Table(r.GetTableName()).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.CacheEntry{}).Error
}
