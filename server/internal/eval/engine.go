package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"debate-sim/server/internal/llm"
	"debate-sim/server/internal/model"
)

// Engine 评审引擎：在辩论完成后对全场发言给出结构化反馈。
type Engine interface {
	Evaluate(ctx context.Context, motion string, transcript []model.TranscriptEntry) (*model.DebateFeedback, error)
}

// LLMEngine 用 LLM 的结构化输出实现评审。
type LLMEngine struct {
	client llm.Client
}

func NewLLMEngine(client llm.Client) *LLMEngine {
	return &LLMEngine{client: client}
}

// Evaluate 让 LLM 按 JSON Schema 产出 summary/winner/scores。
func (e *LLMEngine) Evaluate(ctx context.Context, motion string, transcript []model.TranscriptEntry) (*model.DebateFeedback, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}

	messages := []llm.Message{
		{Role: "system", Content: judgeSystemPrompt},
		{Role: "user", Content: buildJudgePrompt(motion, transcript)},
	}

	// OpenAI Strict Mode 要求 required 覆盖 properties 中的全部字段。
	schema := &llm.JSONSchema{
		Name: "debate_feedback",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "全场辩论的核心交锋与走向，3-5 句话",
				},
				"winner": map[string]any{
					"type":        "string",
					"enum":        []string{"government", "opposition", "draw"},
					"description": "获胜方",
				},
				"scores": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"role":     map[string]any{"type": "string", "enum": []string{"pm", "lo", "mo", "pw"}},
							"score":    map[string]any{"type": "number", "description": "0-10 分"},
							"comments": map[string]any{"type": "string"},
						},
						"required":             []string{"role", "score", "comments"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"summary", "winner", "scores"},
			"additionalProperties": false,
		},
		Strict: true,
	}

	response, err := e.client.Complete(ctx, messages, schema)
	if err != nil {
		return nil, fmt.Errorf("judge LLM call failed: %w", err)
	}

	var feedback model.DebateFeedback
	if err := json.Unmarshal([]byte(response), &feedback); err != nil {
		log.Printf("⚠️ [Eval] failed to parse judge response: %v, response: %s", err, response)
		return nil, fmt.Errorf("failed to parse judge response: %w", err)
	}
	return &feedback, nil
}

const judgeSystemPrompt = `You are an experienced competitive-debate adjudicator.
Judge the debate strictly on the arguments as delivered: clash engagement,
analysis depth, and weighing. Do not reward rhetoric that was never substantiated,
and do not penalise a side for arguments the other side never answered.`

// buildJudgePrompt 把辩题和全部发言拼成评审材料。
func buildJudgePrompt(motion string, transcript []model.TranscriptEntry) string {
	var sb strings.Builder
	sb.WriteString("## Motion\n\n")
	sb.WriteString(motion)
	sb.WriteString("\n\n## Full transcript\n\n")

	speeches := 0
	for _, entry := range transcript {
		switch entry.Kind {
		case model.EntrySpeech:
			sb.WriteString(fmt.Sprintf("[%s]:\n%s\n\n", entry.Speaker.DisplayName(), entry.Content))
			speeches++
		case model.EntryInterruptRequest:
			sb.WriteString(fmt.Sprintf("(POI by %s: %s)\n\n", entry.Speaker.DisplayName(), entry.Content))
		}
	}
	if speeches == 0 {
		sb.WriteString("(No speeches were delivered.)\n\n")
	}

	sb.WriteString("## Task\n\nScore every speaker (pm, lo, mo, pw) from 0 to 10, name the winning side, and summarise the debate.")
	return sb.String()
}
