package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gurtprime/merlinCLI/pkg/nostd"
	"gopkg.in/yaml.v3"
)

// Config 进程启动时构造一次，显式传入各组件，不使用全局可变状态
type Config struct {
	Market    MarketConf    `yaml:"market" json:"market"`
	Sentiment SentimentConf `yaml:"sentiment" json:"sentiment"`
	LLM       LlmConf       `yaml:"llm" json:"llm"`
	Storage   StorageConf   `yaml:"storage" json:"storage"`
	Server    ServerConf    `yaml:"server" json:"server"`
	Telegram  TelegramConf  `yaml:"telegram" json:"telegram"`
}

type MarketConf struct {
	Exchange  string `yaml:"exchange" json:"exchange" default:"binance"`
	Symbol    string `yaml:"symbol" json:"symbol" default:"BTCUSDT"`
	Timeframe string `yaml:"timeframe" json:"timeframe" default:"15m" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 12h 1d"`
	Limit     int    `yaml:"limit" json:"limit" default:"500" validate:"min=1,max=1500"`
	APIKey    string `yaml:"api_key" json:"api_key"`
	Secret    string `yaml:"secret" json:"secret"`
	ProxyURL  string `yaml:"proxy_url" json:"proxy_url"` // 代理地址，例如: http://127.0.0.1:7890
	Testnet   bool   `yaml:"testnet" json:"testnet"`
}

type SentimentSource struct {
	Name      string `yaml:"name" json:"name" validate:"required"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"` // 存放密钥的环境变量名
}

type SentimentConf struct {
	Sources     []SentimentSource `yaml:"sources" json:"sources" validate:"dive"`
	Limit       int               `yaml:"limit" json:"limit" default:"100" validate:"min=1"`
	WindowHours int               `yaml:"window_hours" json:"window_hours" default:"24" validate:"min=1"`
}

type LlmConf struct {
	Provider    string  `yaml:"provider" json:"provider" default:"gemini" validate:"oneof=openai gemini none"`
	Model       string  `yaml:"model" json:"model" default:"gemini-2.5-pro"`
	BaseURL     string  `yaml:"base_url" json:"base_url"` // OpenAI兼容接口的基础URL
	APIKeyEnv   string  `yaml:"api_key_env" json:"api_key_env" default:"GEMINI_API_KEY"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" default:"15000" validate:"min=1"`
	Temperature float64 `yaml:"temperature" json:"temperature" default:"0.3"`
	ProxyURL    string  `yaml:"proxy_url" json:"proxy_url"`
}

type StorageConf struct {
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

type ServerConf struct {
	Addr           string `yaml:"addr" json:"addr" default:":8089"`
	RefreshMinutes int    `yaml:"refresh_minutes" json:"refresh_minutes" default:"0" validate:"min=0"` // 0 表示关闭定时刷新
}

type TelegramConf struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Token   string `yaml:"token" json:"token"`
	ChatID  string `yaml:"chat_id" json:"chat_id"`
}

// Timeframes 支持的K线周期，与 MarketConf.Timeframe 的 oneof 校验保持一致
var Timeframes = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "12h", "1d"}

// IsValidTimeframe 判断周期是否受支持
func IsValidTimeframe(timeframe string) bool {
	for _, tf := range Timeframes {
		if tf == timeframe {
			return true
		}
	}
	return false
}

// SqlitePath 缓存库文件路径
func (c StorageConf) SqlitePath() string {
	return filepath.Join(c.CacheDir, "merlin_cache.sqlite3")
}

// Load 读取配置文件（可不存在），套用默认值与环境变量覆盖，最后校验
func Load(path string) (*Config, error) {
	conf := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, conf); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := defaults.Set(conf); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if len(conf.Sentiment.Sources) == 0 {
		conf.Sentiment.Sources = []SentimentSource{{Name: "cryptopanic"}}
	}
	if conf.Storage.CacheDir == "" {
		conf.Storage.CacheDir = defaultCacheDir()
	}

	conf.applyEnvOverrides()

	if err := validate(conf); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return conf, nil
}

// applyEnvOverrides 环境变量覆盖，便于无配置文件运行
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MERLIN_EXCHANGE"); v != "" {
		c.Market.Exchange = v
	}
	if v := os.Getenv("MERLIN_SYMBOL"); v != "" {
		c.Market.Symbol = v
	}
	if v := os.Getenv("MERLIN_TIMEFRAME"); v != "" {
		c.Market.Timeframe = v
	}
	if v := os.Getenv("MERLIN_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("MERLIN_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MERLIN_LLM_KEY_ENV"); v != "" {
		c.LLM.APIKeyEnv = v
	}
	if v := os.Getenv("MERLIN_CACHE_DIR"); v != "" {
		c.Storage.CacheDir = v
	}

	// gemini 历史默认曾指向 OPENAI_API_KEY，这里纠正为对应的密钥变量
	if c.LLM.Provider == "gemini" && (c.LLM.APIKeyEnv == "" || c.LLM.APIKeyEnv == "OPENAI_API_KEY") {
		c.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.LLM.Provider == "openai" && (c.LLM.APIKeyEnv == "" || c.LLM.APIKeyEnv == "GEMINI_API_KEY") {
		c.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
}

func validate(conf *Config) error {
	customValidator := nostd.CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		return err
	}
	return customValidator.Validate(conf)
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".merlincli"
	}
	return filepath.Join(home, ".cache", "merlincli")
}
