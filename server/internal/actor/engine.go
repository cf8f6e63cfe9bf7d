package actor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"debate-sim/server/internal/llm"
	"debate-sim/server/internal/model"
)

// Engine 负责为每个角色的发言构建 LLM 消息序列。
// 角色简报使用内置默认值，可以用 promptsDir 下的 <role>.md 覆盖。
type Engine struct {
	promptsDir string
	roleBriefs map[model.Role]string
}

// TurnRequest 一轮发言的上下文。
type TurnRequest struct {
	Speaker model.Role
	Motion  string
	// History 截至本轮的全部 transcript 条目（speech 与 POI 相关条目）。
	History []model.TranscriptEntry
	// AcceptedInterrupts 已接受、需要发言人当场回应的质询。
	AcceptedInterrupts []model.InterruptRequest
	// PartialSpeech 非空时表示续讲：发言人已讲出的内容，
	// 生成的文本应从这里继续而不是从头开始。
	PartialSpeech string
	// TimeBudgetSec 本轮发言的时间预算，用于提示目标篇幅。
	TimeBudgetSec int
}

// NewEngine 创建引擎并加载可选的角色简报覆盖。
func NewEngine(promptsDir string) (*Engine, error) {
	engine := &Engine{
		promptsDir: promptsDir,
		roleBriefs: defaultRoleBriefs(),
	}
	if err := engine.loadOverrides(); err != nil {
		return nil, fmt.Errorf("failed to load prompt overrides: %w", err)
	}
	return engine, nil
}

// loadOverrides 从 promptsDir 加载 <role>.md 覆盖内置简报。
// 目录不存在视为没有覆盖，不是错误。
func (e *Engine) loadOverrides() error {
	if e.promptsDir == "" {
		return nil
	}

	files, err := os.ReadDir(e.promptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read prompts dir: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}
		role := model.Role(strings.TrimSuffix(file.Name(), ".md"))
		if _, known := e.roleBriefs[role]; !known {
			continue
		}
		content, err := os.ReadFile(filepath.Join(e.promptsDir, file.Name()))
		if err != nil {
			return fmt.Errorf("read role brief %s: %w", role, err)
		}
		e.roleBriefs[role] = string(content)
	}
	return nil
}

// BuildTurnMessages 组装一轮发言的消息序列：系统人设 + 辩论上下文。
func (e *Engine) BuildTurnMessages(req TurnRequest) ([]llm.Message, error) {
	brief, ok := e.roleBriefs[req.Speaker]
	if !ok {
		return nil, fmt.Errorf("role not found: %s", req.Speaker)
	}

	system := e.assembleSystemPrompt(req, brief)
	user := e.assembleUserPrompt(req)

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, nil
}

// assembleSystemPrompt 组装系统提示：角色定义 + 输出规则。
func (e *Engine) assembleSystemPrompt(req TurnRequest, brief string) string {
	var sb strings.Builder

	sb.WriteString("[Role Definition]\n")
	sb.WriteString(strings.TrimSpace(brief))
	sb.WriteString("\n\n[Output Rules]\n")
	sb.WriteString("- Deliver one continuous competitive-debate speech, first person, no stage directions.\n")
	sb.WriteString(fmt.Sprintf("- Your speaking time is %d seconds; aim for roughly %d words.\n",
		req.TimeBudgetSec, targetWords(req.TimeBudgetSec)))
	sb.WriteString("- Engage directly with arguments already on the table; do not invent speeches that were never given.\n")
	if len(req.AcceptedInterrupts) > 0 {
		sb.WriteString("- You have accepted Points of Information; address each one explicitly mid-speech.\n")
	}
	return sb.String()
}

// assembleUserPrompt 组装用户提示：辩题 + 已有发言 + 待回应的质询。
func (e *Engine) assembleUserPrompt(req TurnRequest) string {
	var sb strings.Builder

	sb.WriteString("## Motion\n\n")
	sb.WriteString(req.Motion)
	sb.WriteString("\n\n## Debate so far\n\n")
	sb.WriteString(e.formatHistory(req.History))

	if len(req.AcceptedInterrupts) > 0 {
		sb.WriteString("\n## Points of Information you accepted\n\n")
		for _, poi := range req.AcceptedInterrupts {
			sb.WriteString(fmt.Sprintf("- From %s: %s\n", poi.Requester.DisplayName(), poi.Content))
		}
	}

	if req.PartialSpeech != "" {
		sb.WriteString("\n## Your speech so far\n\n")
		sb.WriteString(req.PartialSpeech)
		sb.WriteString(fmt.Sprintf("\n\n## Task\n\nContinue your speech as %s from where you left off. Address the accepted Point of Information, then carry on; do not repeat what you have already said.", req.Speaker.DisplayName()))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\n## Task\n\nDeliver your speech as %s.", req.Speaker.DisplayName()))
	return sb.String()
}

// formatHistory 格式化已有发言。质询的提出与裁决也作为上下文给出。
func (e *Engine) formatHistory(entries []model.TranscriptEntry) string {
	if len(entries) == 0 {
		return "(You are the opening speaker; no speeches have been given yet.)"
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch entry.Kind {
		case model.EntrySpeech:
			lines = append(lines, fmt.Sprintf("[%s]:\n%s", entry.Speaker.DisplayName(), entry.Content))
		case model.EntryInterruptRequest:
			lines = append(lines, fmt.Sprintf("(POI raised by %s: %s)", entry.Speaker.DisplayName(), entry.Content))
		case model.EntryInterruptResponse:
			lines = append(lines, fmt.Sprintf("(%s)", entry.Content))
		}
		// transition 条目是编排痕迹，不进入提示词。
	}

	if len(lines) == 0 {
		return "(You are the opening speaker; no speeches have been given yet.)"
	}
	return strings.Join(lines, "\n\n")
}

// targetWords 按约 130 词/分钟估算目标篇幅。
func targetWords(seconds int) int {
	words := seconds * 130 / 60
	if words < 80 {
		words = 80
	}
	return words
}

// defaultRoleBriefs 内置的四个议会制角色简报。
func defaultRoleBriefs() map[model.Role]string {
	return map[model.Role]string{
		model.RolePM: `You are the Prime Minister, first speaker for the Government.
Define the motion on your own terms, set up the framework for the debate,
and present the Government's two or three strongest constructive arguments.
Speak with conviction; you are establishing the ground everyone else must fight on.`,

		model.RoleLO: `You are the Leader of the Opposition, first speaker against the motion.
Challenge the Government's definition where it is unfair, rebut the Prime
Minister's case point by point, and present the Opposition's own constructive
material. Be incisive rather than merely contrarian.`,

		model.RoleMO: `You are the Member of the Opposition, second Opposition speaker.
Rebuild and extend your leader's case, dismantle the Government's responses,
and introduce at least one new angle of analysis the debate has not yet heard.
Crystallise why the Opposition is winning the key clashes.`,

		model.RolePW: `You are the Prime Minister delivering the Government wrap-up.
This is a rebuttal speech: no new arguments. Identify the two or three central
clashes of the debate, weigh them, and explain why the Government wins each.
End on the strongest possible framing of the motion.`,
	}
}
