package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-orz/orz"
	"github.com/gurtprime/merlinCLI/internal/models"
	"github.com/gurtprime/merlinCLI/internal/repo"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cast"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed templates/insight_prompt.md
var insightPromptTemplate string

// InsightResult 洞察结果，后端不可用时为启发式兜底
type InsightResult struct {
	Recommendation   Recommendation `json:"recommendation"`
	Rationale        string         `json:"rationale"`
	Risks            []string       `json:"risks"`
	KeyLevels        []string       `json:"key_levels"`
	Backend          string         `json:"backend"`
	Model            string         `json:"model"`
	PromptTokens     int            `json:"prompt_tokens,omitempty"`
	CompletionTokens int            `json:"completion_tokens,omitempty"`
}

// InsightService 洞察生成服务：渲染提示词、调用后端、失败时降级并记录调用日志
type InsightService struct {
	logger *zap.Logger

	*orz.Service
	*repo.InsightLogRepo

	backend InsightBackend
}

// NewInsightService 创建洞察服务
func NewInsightService(db *gorm.DB, backend InsightBackend, logger *zap.Logger) *InsightService {
	return &InsightService{
		logger:         logger,
		Service:        orz.NewService(db),
		InsightLogRepo: repo.NewInsightLogRepo(db),
		backend:        backend,
	}
}

// Generate 生成洞察，后端出错时返回启发式结果，永不向上抛错
func (s *InsightService) Generate(ctx context.Context, bundle SignalBundle) *InsightResult {
	prompt := renderInsightPrompt(bundle)

	result, err := s.backend.GenerateInsight(ctx, bundle, prompt)
	if err != nil {
		s.logger.Warn("insight backend failed, falling back to heuristic",
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		result = heuristicInsight(bundle, err.Error())
	}

	s.recordLog(ctx, bundle, result)
	return result
}

// recordLog 洞察日志只做尽力而为的写入，失败不影响主流程
func (s *InsightService) recordLog(ctx context.Context, bundle SignalBundle, result *InsightResult) {
	entry := &models.InsightLog{
		ID:               ulid.Make().String(),
		Backend:          result.Backend,
		Model:            result.Model,
		Symbol:           bundle.Meta.Symbol,
		Timeframe:        bundle.Meta.Timeframe,
		Recommendation:   string(result.Recommendation),
		CompositeScore:   bundle.Regime.CompositeScore,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		ExecutedAt:       time.Now(),
	}
	if err := s.InsightLogRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record insight log", zap.Error(err))
	}
}

// renderInsightPrompt 把信号包渲染进提示词模板
func renderInsightPrompt(bundle SignalBundle) string {
	f := func(v float64) string { return fmt.Sprintf("%.4f", v) }

	replacements := map[string]interface{}{
		"symbol":             bundle.Meta.Symbol,
		"exchange":           bundle.Meta.Exchange,
		"timeframe":          bundle.Meta.Timeframe,
		"price":              f(bundle.Technicals.Price),
		"high":               f(bundle.PriceHistory.High),
		"low":                f(bundle.PriceHistory.Low),
		"change_pct":         f(bundle.PriceHistory.ChangePct),
		"price_trend":        bundle.PriceHistory.Trend,
		"volume_trend":       bundle.PriceHistory.VolumeTrend,
		"ema_trend":          f(bundle.Technicals.EMATrend),
		"sma_trend":          f(bundle.Technicals.SMATrend),
		"rsi":                f(bundle.Technicals.RSI),
		"macd":               f(bundle.Technicals.MACD),
		"macd_signal":        f(bundle.Technicals.MACDSignal),
		"bb_position":        f(bundle.Technicals.BBPosition),
		"volume_ratio":       f(bundle.Technicals.VolumeRatio),
		"volatility":         f(bundle.Technicals.Volatility),
		"sentiment_compound": f(bundle.Sentiment.Compound),
		"buzz":               cast.ToString(bundle.Sentiment.Buzz),
		"composite_score":    f(bundle.Regime.CompositeScore),
		"recommendation":     string(bundle.Regime.Recommendation),
	}

	tmpl := fasttemplate.New(insightPromptTemplate, "{{", "}}")
	return tmpl.ExecuteString(replacements)
}

// parseInsightText 解析后端返回的 JSON 文本，容忍 markdown 代码栅栏与前后缀杂讯
func parseInsightText(text string, bundle SignalBundle) (*InsightResult, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return nil, fmt.Errorf("insight response contains no JSON object: %q", truncate(text, 120))
	}

	var raw struct {
		Recommendation string          `json:"recommendation"`
		Rationale      string          `json:"rationale"`
		Risks          json.RawMessage `json:"risks"`
		KeyLevels      json.RawMessage `json:"key_levels"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse insight response: %w", err)
	}

	result := &InsightResult{
		Rationale: strings.TrimSpace(raw.Rationale),
		Risks:     normalizeRisks(raw.Risks),
		KeyLevels: normalizeKeyLevels(raw.KeyLevels),
	}

	switch Recommendation(strings.ToUpper(strings.TrimSpace(raw.Recommendation))) {
	case RecommendationLong:
		result.Recommendation = RecommendationLong
	case RecommendationShort:
		result.Recommendation = RecommendationShort
	case RecommendationNeutral:
		result.Recommendation = RecommendationNeutral
	default:
		result.Recommendation = bundle.Regime.Recommendation
	}

	return result, nil
}

// extractJSONObject 去掉代码栅栏后取首个 { 到末个 } 之间的片段
func extractJSONObject(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}

// normalizeRisks 风险项可能是字符串数组、单个字符串或混杂类型的数组
func normalizeRisks(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		risks := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(cast.ToString(item)); s != "" {
				risks = append(risks, s)
			}
		}
		return risks
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{strings.TrimSpace(single)}
	}
	return nil
}

// normalizeKeyLevels 关键价位统一为可读字符串列表。
// 模型可能给出字符串数组、{type,value,description} 对象数组、单个对象，
// 或 名称→价位 的映射，这里全部接住，不允许静默丢弃
func normalizeKeyLevels(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		levels := make([]string, 0, len(list))
		for _, item := range list {
			if s := formatKeyLevel(item); s != "" {
				levels = append(levels, s)
			}
		}
		if len(levels) == 0 {
			return nil
		}
		return levels
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}

	if hasLevelValue(m) {
		if s := formatKeyLevel(m); s != "" {
			return []string{s}
		}
		return nil
	}

	// 名称→价位 映射，按名称排序保证输出稳定
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	levels := make([]string, 0, len(m))
	for _, name := range names {
		levels = append(levels, fmt.Sprintf("%s: %s", strings.ToLower(name), formatLevelValue(m[name])))
	}
	return levels
}

// formatKeyLevel 单个价位项：字符串原样保留，对象组合为 "type: value - description"
func formatKeyLevel(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		levelType := strings.TrimSpace(cast.ToString(v["type"]))
		if levelType == "" {
			levelType = "level"
		}
		value := firstNonNil(v["value"], v["level"], v["price"])
		desc := strings.TrimSpace(cast.ToString(firstNonNil(v["description"], v["desc"], v["note"], v["text"])))
		if desc != "" {
			return fmt.Sprintf("%s: %s - %s", levelType, formatLevelValue(value), desc)
		}
		return fmt.Sprintf("%s: %s", levelType, formatLevelValue(value))
	default:
		return strings.TrimSpace(cast.ToString(item))
	}
}

func hasLevelValue(m map[string]any) bool {
	for _, key := range []string{"value", "level", "price"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

func formatLevelValue(value any) string {
	if value == nil {
		return "N/A"
	}
	if f, err := cast.ToFloat64E(value); err == nil {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return cast.ToString(value)
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
