package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-orz/orz"
	"github.com/gurtprime/merlinCLI/internal/models"
	"github.com/gurtprime/merlinCLI/internal/repo"
	"github.com/gurtprime/merlinCLI/internal/xe"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CacheService TTL键值缓存，所有外部抓取均经由此处
// 读-检查-删除序列在同一把锁内完成，避免并发读到半过期条目
type CacheService struct {
	logger *zap.Logger

	*orz.Service
	*repo.CacheRepo

	mu sync.Mutex
}

// NewCacheService 创建缓存服务
func NewCacheService(db *gorm.DB, logger *zap.Logger) *CacheService {
	return &CacheService{
		logger:    logger,
		Service:   orz.NewService(db),
		CacheRepo: repo.NewCacheRepo(db),
	}
}

// Get 读取缓存，命中时反序列化到 dest
// 返回值含义：(true, nil) 命中；(false, nil) 未命中或已过期；
// 载荷损坏返回错误，不得伪装成未命中，否则会掩盖存储层故障
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.CacheRepo.FindByKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}

	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(time.Now()) {
		if err := s.CacheRepo.DeleteByKey(ctx, key); err != nil {
			s.logger.Warn("failed to purge expired cache entry",
				zap.String("key", key),
				zap.Error(err))
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		return false, fmt.Errorf("%w: key %q: %v", xe.ErrCacheCorrupted, key, err)
	}
	return true, nil
}

// Set 写入缓存，ttl 大于 0 时计算过期时间，否则永不过期
func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value for key %q: %w", key, err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &models.CacheEntry{
		CacheKey:  key,
		Payload:   payload,
		ExpiresAt: expiresAt,
	}
	if err := s.CacheRepo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// Delete 删除指定键
func (s *CacheService) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CacheRepo.DeleteByKey(ctx, key)
}

// Clear 清空缓存
func (s *CacheService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CacheRepo.DeleteAll(ctx)
}

// PurgeExpired 批量清理已过期条目，读路径的惰性删除之外的兜底回收
func (s *CacheService) PurgeExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CacheRepo.DeleteExpired(ctx, time.Now())
}
