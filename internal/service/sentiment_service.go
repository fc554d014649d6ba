package service

import (
	"time"

	"github.com/jonreiter/govader"
)

// Document 情绪文档，仅在缓存 TTL 内短暂存活，不做持久化
type Document struct {
	Source      string     `json:"source"`
	Text        string     `json:"text"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ScoreRow 单篇文档的四轴极性得分
type ScoreRow struct {
	Document Document `json:"document"`
	Compound float64  `json:"compound"`
	Positive float64  `json:"pos"`
	Negative float64  `json:"neg"`
	Neutral  float64  `json:"neu"`
}

// SentimentAggregate 文档窗口的聚合情绪向量
// Bias 仅在输入非空时出现，调用方须把缺失当作零处理
type SentimentAggregate struct {
	Compound float64  `json:"compound"`
	Positive float64  `json:"pos"`
	Negative float64  `json:"neg"`
	Neutral  float64  `json:"neu"`
	Buzz     int      `json:"buzz"`
	Bias     *float64 `json:"bias,omitempty"`
}

// SentimentService 词典式情绪打分，确定性计算，无外部调用
type SentimentService struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewSentimentService 创建情绪分析服务
func NewSentimentService() *SentimentService {
	return &SentimentService{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score 对每篇文档计算极性得分
func (s *SentimentService) Score(docs []Document) []ScoreRow {
	rows := make([]ScoreRow, 0, len(docs))
	for _, doc := range docs {
		polarity := s.analyzer.PolarityScores(doc.Text)
		rows = append(rows, ScoreRow{
			Document: doc,
			Compound: polarity.Compound,
			Positive: polarity.Positive,
			Negative: polarity.Negative,
			Neutral:  polarity.Neutral,
		})
	}
	return rows
}

// Aggregate 打分并归并为聚合向量，空输入返回零聚合且不带 bias
func (s *SentimentService) Aggregate(docs []Document) SentimentAggregate {
	rows := s.Score(docs)
	if len(rows) == 0 {
		return SentimentAggregate{}
	}

	var agg SentimentAggregate
	for _, row := range rows {
		agg.Compound += row.Compound
		agg.Positive += row.Positive
		agg.Negative += row.Negative
		agg.Neutral += row.Neutral
	}

	n := float64(len(rows))
	agg.Compound /= n
	agg.Positive /= n
	agg.Negative /= n
	agg.Neutral /= n
	agg.Buzz = len(rows)

	bias := agg.Positive - agg.Negative
	agg.Bias = &bias

	return agg
}
