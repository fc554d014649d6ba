package models

import (
	"time"
)

// InsightLog LLM洞察调用记录
type InsightLog struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Backend          string    `json:"backend"`                           // openai/gemini/fallback
	Model            string    `json:"model"`                             // 使用的模型
	Symbol           string    `json:"symbol"`                            // 交易对
	Timeframe        string    `json:"timeframe"`                         // 时间框架
	Recommendation   string    `json:"recommendation"`                    // LONG/SHORT/NEUTRAL
	CompositeScore   float64   `json:"composite_score"`                   // 当次综合评分
	PromptTokens     int       `json:"prompt_tokens"`                     // 提示词token数
	CompletionTokens int       `json:"completion_tokens"`                 // 完成token数
	ExecutedAt       time.Time `gorm:"not null;index" json:"executed_at"` // 执行时间
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (InsightLog) TableName() string {
	return "insight_logs"
}
