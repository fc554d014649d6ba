package repo

import (
	"context"

	"github.com/go-orz/orz"
	"github.com/gurtprime/merlinCLI/internal/models"
	"gorm.io/gorm"
)

func NewInsightLogRepo(db *gorm.DB) *InsightLogRepo {
	return &InsightLogRepo{
		Repository: orz.NewRepository[models.InsightLog, string](db),
	}
}

type InsightLogRepo struct {
	orz.Repository[models.InsightLog, string]
}

// FindRecent 获取最近的洞察记录
func (r InsightLogRepo) FindRecent(ctx context.Context, limit int) ([]models.InsightLog, error) {
	var logs []models.InsightLog
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Order("executed_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
