package llm

import (
	"context"
	"fmt"

	"debate-sim/server/internal/config"
)

// Client LLM 客户端接口
type Client interface {
	// Complete 完成一次非流式文本生成（用于结构化输出，如赛后评审）。
	Complete(ctx context.Context, messages []Message, schema *JSONSchema) (string, error)

	// Stream 发起一次流式生成，返回增量文本序列。
	// 约定：序列是惰性、有限、不可重放的；增量只追加不替换。
	// 取消 ctx 后不再产出增量，通道会被关闭。
	// 发起请求本身失败时返回 error（调用方按 GenerationError 处理）。
	Stream(ctx context.Context, messages []Message) (<-chan Chunk, error)
}

// Message 消息结构
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Chunk 流式生成中的一个增量。
// Err 非空表示流在中途失败，之后通道立即关闭。
type Chunk struct {
	Delta string
	Err   error
}

// JSONSchema JSON Schema 定义（用于结构化输出）
type JSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

// NewClient 创建 LLM 客户端
func NewClient(cfg *config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case "deepseek":
		return NewOpenAICompatClient("deepseek", cfg.LLM.DeepSeek), nil
	case "openai":
		return NewOpenAICompatClient("openai", cfg.LLM.OpenAI), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
