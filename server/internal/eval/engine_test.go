package eval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"debate-sim/server/internal/llm"
	"debate-sim/server/internal/model"
)

// fakeJudge 记录请求并返回固定的评审 JSON。
type fakeJudge struct {
	response string
	err      error

	gotMessages []llm.Message
	gotSchema   *llm.JSONSchema
}

func (f *fakeJudge) Complete(ctx context.Context, messages []llm.Message, schema *llm.JSONSchema) (string, error) {
	f.gotMessages = messages
	f.gotSchema = schema
	return f.response, f.err
}

func (f *fakeJudge) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Chunk, error) {
	return nil, errors.New("not implemented")
}

func sampleTranscript() []model.TranscriptEntry {
	return []model.TranscriptEntry{
		{Kind: model.EntrySpeech, Speaker: model.RolePM, Content: "Opening case."},
		{Kind: model.EntryInterruptRequest, Speaker: model.RoleLO, Content: "On that point?"},
		{Kind: model.EntrySpeech, Speaker: model.RoleLO, Content: "Rebuttal case."},
		{Kind: model.EntryTransition, Content: "turn advanced"},
	}
}

func TestEvaluateParsesStructuredFeedback(t *testing.T) {
	judge := &fakeJudge{response: `{
		"summary": "Government held the central clash.",
		"winner": "government",
		"scores": [
			{"role": "pm", "score": 8.5, "comments": "Strong framing."},
			{"role": "lo", "score": 7.0, "comments": "Missed the weighing."}
		]
	}`}

	engine := NewLLMEngine(judge)
	feedback, err := engine.Evaluate(context.Background(), "This House would ban X", sampleTranscript())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if feedback.Winner != "government" {
		t.Errorf("expected winner government, got %s", feedback.Winner)
	}
	if len(feedback.Scores) != 2 || feedback.Scores[0].Role != model.RolePM {
		t.Errorf("unexpected scores: %+v", feedback.Scores)
	}

	if judge.gotSchema == nil || judge.gotSchema.Name != "debate_feedback" || !judge.gotSchema.Strict {
		t.Errorf("expected strict debate_feedback schema, got %+v", judge.gotSchema)
	}
	user := judge.gotMessages[1].Content
	if !strings.Contains(user, "Opening case.") || !strings.Contains(user, "Rebuttal case.") {
		t.Error("judge prompt should contain the speeches")
	}
	if !strings.Contains(user, "On that point?") {
		t.Error("judge prompt should contain POI requests")
	}
	if strings.Contains(user, "turn advanced") {
		t.Error("transition entries should not leak into the judge prompt")
	}
}

func TestEvaluateLLMError(t *testing.T) {
	engine := NewLLMEngine(&fakeJudge{err: errors.New("rate limited")})
	if _, err := engine.Evaluate(context.Background(), "m", nil); err == nil {
		t.Error("expected error when the LLM call fails")
	}
}

func TestEvaluateMalformedResponse(t *testing.T) {
	engine := NewLLMEngine(&fakeJudge{response: "not json"})
	if _, err := engine.Evaluate(context.Background(), "m", nil); err == nil {
		t.Error("expected error for malformed judge response")
	}
}
