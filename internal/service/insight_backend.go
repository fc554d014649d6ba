package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const insightSystemPrompt = "You are a disciplined crypto market analyst. " +
	"Answer strictly in the requested JSON shape and never add commentary outside it."

// InsightBackend 洞察生成后端，在构造期选定实现，调用点不做配置判断
type InsightBackend interface {
	Name() string
	Model() string
	GenerateInsight(ctx context.Context, bundle SignalBundle, prompt string) (*InsightResult, error)
}

// NewInsightBackend 按配置选择一次后端：密钥缺失或 provider 为 none 时退化为启发式后端
func NewInsightBackend(conf config.LlmConf, logger *zap.Logger) InsightBackend {
	if conf.Provider == "none" {
		return newFallbackBackend("insight backend disabled by configuration")
	}

	apiKey := os.Getenv(conf.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("LLM API key not set, using heuristic insight backend",
			zap.String("provider", conf.Provider),
			zap.String("key_env", conf.APIKeyEnv))
		return newFallbackBackend(fmt.Sprintf("no API key in %s", conf.APIKeyEnv))
	}

	switch conf.Provider {
	case "gemini":
		return &geminiBackend{conf: conf, apiKey: apiKey}
	default:
		return newOpenAIBackend(conf, apiKey, logger)
	}
}

// openAIBackend OpenAI 兼容接口后端
type openAIBackend struct {
	client *openai.Client
	conf   config.LlmConf
}

func newOpenAIBackend(conf config.LlmConf, apiKey string, logger *zap.Logger) *openAIBackend {
	var options = []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if conf.BaseURL != "" {
		options = append(options, option.WithBaseURL(conf.BaseURL))
	}
	if conf.ProxyURL != "" {
		u, err := url.Parse(conf.ProxyURL)
		if err != nil {
			logger.Fatal("failed to parse proxy URL", zap.Error(err))
		}
		httpClient := &http.Client{
			Timeout: time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(u),
			},
		}
		options = append(options, option.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(options...)
	return &openAIBackend{client: &client, conf: conf}
}

func (b *openAIBackend) Name() string  { return "openai" }
func (b *openAIBackend) Model() string { return b.conf.Model }

func (b *openAIBackend) GenerateInsight(ctx context.Context, bundle SignalBundle, prompt string) (*InsightResult, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.conf.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(insightSystemPrompt),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(b.conf.MaxTokens)),
		Temperature:         openai.Float(b.conf.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	result, err := parseInsightText(resp.Choices[0].Message.Content, bundle)
	if err != nil {
		return nil, err
	}
	result.Backend = b.Name()
	result.Model = b.conf.Model
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	return result, nil
}

// geminiBackend Google Gemini 后端，客户端按调用惰性创建以携带 ctx
type geminiBackend struct {
	conf   config.LlmConf
	apiKey string
}

func (b *geminiBackend) Name() string  { return "gemini" }
func (b *geminiBackend) Model() string { return b.conf.Model }

func (b *geminiBackend) GenerateInsight(ctx context.Context, bundle SignalBundle, prompt string) (*InsightResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	temperature := float32(b.conf.Temperature)
	resp, err := client.Models.GenerateContent(ctx, b.conf.Model,
		genai.Text(insightSystemPrompt+"\n\n"+prompt),
		&genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: int32(b.conf.MaxTokens),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to call Gemini API: %w", err)
	}

	result, err := parseInsightText(resp.Text(), bundle)
	if err != nil {
		return nil, err
	}
	result.Backend = b.Name()
	result.Model = b.conf.Model
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// fallbackBackend 无外部依赖的启发式后端，仅凭信号包自身推导结论，永不失败
type fallbackBackend struct {
	reason string
}

func newFallbackBackend(reason string) *fallbackBackend {
	return &fallbackBackend{reason: reason}
}

func (b *fallbackBackend) Name() string  { return "fallback" }
func (b *fallbackBackend) Model() string { return "heuristic" }

func (b *fallbackBackend) GenerateInsight(_ context.Context, bundle SignalBundle, _ string) (*InsightResult, error) {
	return heuristicInsight(bundle, b.reason), nil
}

// heuristicInsight 由市况建议与价格直接推导的兜底结果
func heuristicInsight(bundle SignalBundle, reason string) *InsightResult {
	price := bundle.Technicals.Price
	rationale := fmt.Sprintf(
		"Heuristic insight (%s): composite score %.3f points %s with RSI at %.1f and sentiment %.3f.",
		reason,
		bundle.Regime.CompositeScore,
		bundle.Regime.Recommendation,
		bundle.Technicals.RSI,
		bundle.Regime.Sentiment,
	)

	return &InsightResult{
		Recommendation: bundle.Regime.Recommendation,
		Rationale:      rationale,
		Risks: []string{
			"Heuristic output, no model-generated reasoning behind it.",
			"Composite score weights are static and ignore structural market shifts.",
		},
		KeyLevels: []string{
			fmt.Sprintf("support: %.2f", price*0.97),
			fmt.Sprintf("resistance: %.2f", price*1.03),
		},
		Backend: "fallback",
		Model:   "heuristic",
	}
}
