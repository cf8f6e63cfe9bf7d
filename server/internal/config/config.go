package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Debate  DebateConfig  `yaml:"debate"`
	Actor   ActorConfig   `yaml:"actor"`
	Logging LoggingConfig `yaml:"logging"`
	Paths   PathsConfig   `yaml:"paths"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PingInterval WebSocket 通知通道的心跳间隔。
	PingInterval time.Duration `yaml:"ping_interval"`
}

// LLMConfig 内容生成服务配置
type LLMConfig struct {
	Provider string            `yaml:"provider"` // "deepseek" or "openai"
	DeepSeek LLMProviderConfig `yaml:"deepseek"`
	OpenAI   LLMProviderConfig `yaml:"openai"`
}

// LLMProviderConfig LLM 提供商配置
type LLMProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIURL      string  `yaml:"api_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DebateConfig 辩论编排相关配置
type DebateConfig struct {
	// DefaultFormat 创建会话时未指定赛制的默认值。
	DefaultFormat string `yaml:"default_format"`
	// TextFlushInterval 增量文本对外刷新的最小间隔（节流上限）。
	TextFlushInterval time.Duration `yaml:"text_flush_interval"`
}

type ActorConfig struct {
	// PromptsDir 角色提示词覆盖目录，为空则使用内置默认。
	PromptsDir string `yaml:"prompts_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type PathsConfig struct {
	Formats string `yaml:"formats"`
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	fmt.Printf("📋 Loading config from: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	fmt.Printf("✅ Config file read successfully (%d bytes)\n", len(data))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	fmt.Printf("✅ Config parsed successfully\n")

	cfg.applyDefaults()

	// 从环境变量覆盖敏感信息
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		fmt.Printf("🔑 Using DEEPSEEK_API_KEY from environment variable\n")
		cfg.LLM.DeepSeek.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		fmt.Printf("🔑 Using OPENAI_API_KEY from environment variable\n")
		cfg.LLM.OpenAI.APIKey = key
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		fmt.Printf("🔑 Using LLM_API_KEY from environment variable\n")
		switch cfg.LLM.Provider {
		case "deepseek":
			cfg.LLM.DeepSeek.APIKey = key
		case "openai":
			cfg.LLM.OpenAI.APIKey = key
		}
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		fmt.Printf("🤖 Using LLM_MODEL from environment: %s\n", model)
		switch cfg.LLM.Provider {
		case "deepseek":
			cfg.LLM.DeepSeek.Model = model
		case "openai":
			cfg.LLM.OpenAI.Model = model
		}
	}

	// 打印关键配置
	fmt.Printf("\n📊 Configuration Summary:\n")
	fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   LLM Provider: %s\n", cfg.LLM.Provider)
	fmt.Printf("   Formats Path: %s\n", cfg.Paths.Formats)
	fmt.Printf("   Default Format: %s\n", cfg.Debate.DefaultFormat)
	fmt.Printf("   Text Flush Interval: %v\n", cfg.Debate.TextFlushInterval)
	fmt.Printf("\n")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	fmt.Printf("✅ Config validation passed\n\n")

	return &cfg, nil
}

// applyDefaults 填充未显式配置的字段。
// DeepSeek 的默认地址与模型沿用官方 OpenAI 兼容端点。
func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "deepseek"
	}
	if c.LLM.DeepSeek.APIURL == "" {
		c.LLM.DeepSeek.APIURL = "https://api.deepseek.com"
	}
	if c.LLM.DeepSeek.Model == "" {
		c.LLM.DeepSeek.Model = "deepseek-chat"
	}
	if c.LLM.DeepSeek.Temperature == 0 {
		c.LLM.DeepSeek.Temperature = 0.7
	}
	if c.LLM.OpenAI.APIURL == "" {
		c.LLM.OpenAI.APIURL = "https://api.openai.com"
	}
	if c.Debate.DefaultFormat == "" {
		c.Debate.DefaultFormat = "cpdl"
	}
	if c.Debate.TextFlushInterval <= 0 {
		c.Debate.TextFlushInterval = 40 * time.Millisecond
	}
	if c.Server.PingInterval <= 0 {
		c.Server.PingInterval = 30 * time.Second
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Paths.Formats == "" {
		return fmt.Errorf("formats path is required")
	}
	switch c.LLM.Provider {
	case "deepseek", "openai":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	return nil
}
