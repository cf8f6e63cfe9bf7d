// Package scheduler 是辩论编排的核心：唯一有权推进轮次状态的组件。
// 采用 Actor Model：一个 goroutine、一个事件通道，外部命令同步入队，
// 时钟滴答、内容流回调和 POI 超时异步回投到同一循环，
// 因此会话状态没有真正的并发修改，事件间的顺序由循环串行化决定。
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"debate-sim/server/internal/actor"
	"debate-sim/server/internal/clock"
	"debate-sim/server/internal/eval"
	"debate-sim/server/internal/model"
	"debate-sim/server/internal/poi"
	"debate-sim/server/internal/session"
	"debate-sim/server/internal/stream"
	"debate-sim/server/internal/transcript"
)

const (
	// 队列容量：超过此值的异步事件将被丢弃（背压控制）。
	defaultQueueCapacity = 256
	// 同步命令的排队与处理超时。
	defaultCommandTimeout = 5 * time.Second
	// 评审调用的超时。
	evaluateTimeout = 120 * time.Second
)

// Notifier 把会话变化推送给展示层。实现方不得阻塞调用。
type Notifier interface {
	NotifyStatus(sessionID string, status model.Status)
	NotifyTick(sessionID string, speaker model.Role, remaining int)
	// NotifyText 节流后的累积发言文本快照。
	NotifyText(sessionID string, speaker model.Role, text string)
	NotifyTranscript(sessionID string, entry model.TranscriptEntry)
	NotifyFeedback(sessionID string, feedback *model.DebateFeedback)
}

// NopNotifier 空实现，供测试与无订阅者场景使用。
type NopNotifier struct{}

func (NopNotifier) NotifyStatus(string, model.Status)              {}
func (NopNotifier) NotifyTick(string, model.Role, int)             {}
func (NopNotifier) NotifyText(string, model.Role, string)          {}
func (NopNotifier) NotifyTranscript(string, model.TranscriptEntry) {}
func (NopNotifier) NotifyFeedback(string, *model.DebateFeedback)   {}

// Config 调度器的静态配置。
type Config struct {
	SessionID string
	Format    model.DebateFormat
	// TickInterval 时钟间隔；0 表示 1 秒（测试可缩短）。
	TickInterval time.Duration
}

// Deps 调度器的协作组件。
type Deps struct {
	Prompts    *actor.Engine
	Streams    *stream.Adapter
	Evaluator  eval.Engine
	Transcript transcript.Store
	Sessions   session.Store
	Notifier   Notifier
	Logger     *log.Logger
}

// Scheduler 单会话的轮次调度器。
// 除导出方法外的所有字段只能在事件循环 goroutine 中访问。
type Scheduler struct {
	cfg    Config
	deps   Deps
	logger *log.Logger

	state *model.DebateState
	clock *clock.Clock
	poi   *poi.Handler

	// gen 单调递增的轮次代数。每开一个新流或会话重置时递增；
	// 携带过期代数的异步事件被无条件丢弃。
	gen    int64
	active *stream.Handle
	// carry 本轮此前已冻结的发言文本（POI 续讲时累积），到期作废。
	carry string
	// pendingAdvance 本轮在暂停期间已自然完结，推进挂起到 resume。
	pendingAdvance bool

	entryCounter int64
	poiTimers    map[string]*time.Timer

	eventCh chan *event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New 创建并启动调度器。Close 负责停止事件循环。
func New(cfg Config, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
		state: &model.DebateState{
			SessionID:     cfg.SessionID,
			FormatID:      cfg.Format.FormatID,
			Status:        model.StatusIdle,
			SpeakingOrder: append([]model.Role(nil), cfg.Format.SpeakingOrder...),
			CurrentIndex:  -1,
			CreatedAt:     time.Now(),
		},
		poi:       poi.NewHandler(cfg.Format.ProtectedWindowSec, cfg.Format.POITimeoutSec, nil),
		poiTimers: make(map[string]*time.Timer),
		eventCh:   make(chan *event, defaultQueueCapacity),
		ctx:       ctx,
		cancel:    cancel,
	}

	interval := cfg.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	s.clock = clock.NewWithInterval(interval,
		func(tag int64, remaining int) {
			s.post(&event{kind: evClockTick, gen: tag, remaining: remaining})
		},
		func(tag int64) {
			s.post(&event{kind: evClockExpired, gen: tag})
		},
	)

	s.persist()

	s.wg.Add(1)
	go s.run()
	s.logger.Printf("[Scheduler] Created: session=%s format=%s", cfg.SessionID, cfg.Format.FormatID)
	return s
}

// SessionID 返回调度器服务的会话标识。
func (s *Scheduler) SessionID() string { return s.cfg.SessionID }

// Close 停止事件循环并释放时钟、流等资源。幂等。
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()

	s.clock.Stop()
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	for id, timer := range s.poiTimers {
		timer.Stop()
		delete(s.poiTimers, id)
	}
}

// ---- 外部命令（同步，串行入队） ----

// Start 开始辩论：写入辩题并让第一位发言人上场。
func (s *Scheduler) Start(motion string) error {
	res := s.enqueueSync(&event{kind: cmdStart, motion: motion})
	return res.err
}

// Pause 暂停：停时钟但不打断进行中的内容生成。
func (s *Scheduler) Pause() error {
	return s.enqueueSync(&event{kind: cmdPause}).err
}

// Resume 从暂停处继续计时。
func (s *Scheduler) Resume() error {
	return s.enqueueSync(&event{kind: cmdResume}).err
}

// Reset 取消进行中的流、停止时钟、清空 transcript，会话回到 idle。
func (s *Scheduler) Reset() error {
	return s.enqueueSync(&event{kind: cmdReset}).err
}

// RequestInterrupt 提出一个 POI。校验失败时同步返回 poi 包的哨兵错误。
func (s *Scheduler) RequestInterrupt(requester model.Role, content string) (*model.InterruptRequest, error) {
	res := s.enqueueSync(&event{kind: cmdRequestInterrupt, requester: requester, content: content})
	return res.interrupt, res.err
}

// AcceptInterrupt 接受 pending POI：当前发言人会就地回应该质询。
func (s *Scheduler) AcceptInterrupt(id string) error {
	return s.enqueueSync(&event{kind: cmdAcceptInterrupt, interruptID: id}).err
}

// RejectInterrupt 拒绝 pending POI，可附带理由。
func (s *Scheduler) RejectInterrupt(id, reason string) error {
	return s.enqueueSync(&event{kind: cmdRejectInterrupt, interruptID: id, reason: reason}).err
}

// Snapshot 返回会话的只读快照（在事件循环内构建，天然一致）。
func (s *Scheduler) Snapshot() (*model.DebateSnapshot, error) {
	res := s.enqueueSync(&event{kind: cmdSnapshot})
	return res.snapshot, res.err
}

// post 异步事件入队（非阻塞）。队列满或循环已停止时丢弃。
func (s *Scheduler) post(ev *event) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	select {
	case s.eventCh <- ev:
	default:
		s.logger.Printf("[Scheduler] ⚠️ Queue full, dropping event: type=%s session=%s", ev.kind, s.cfg.SessionID)
	}
}

// enqueueSync 命令入队并等待处理结果。
func (s *Scheduler) enqueueSync(ev *event) cmdResult {
	ev.resultCh = make(chan cmdResult, 1)

	select {
	case s.eventCh <- ev:
	case <-s.ctx.Done():
		return cmdResult{err: ErrClosed}
	case <-time.After(defaultCommandTimeout):
		return cmdResult{err: fmt.Errorf("%w: enqueue %s", ErrTimeout, ev.kind)}
	}

	select {
	case res := <-ev.resultCh:
		return res
	case <-s.ctx.Done():
		return cmdResult{err: ErrClosed}
	case <-time.After(defaultCommandTimeout):
		return cmdResult{err: fmt.Errorf("%w: waiting for %s", ErrTimeout, ev.kind)}
	}
}

// ---- 事件循环 ----

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.eventCh:
			s.dispatch(ev)
		}
	}
}

func (s *Scheduler) dispatch(ev *event) {
	switch ev.kind {
	case cmdStart:
		ev.resultCh <- cmdResult{err: s.handleStart(ev.motion)}
	case cmdPause:
		ev.resultCh <- cmdResult{err: s.handlePause()}
	case cmdResume:
		ev.resultCh <- cmdResult{err: s.handleResume()}
	case cmdReset:
		ev.resultCh <- cmdResult{err: s.handleReset()}
	case cmdRequestInterrupt:
		req, err := s.handleRequestInterrupt(ev.requester, ev.content)
		ev.resultCh <- cmdResult{interrupt: req, err: err}
	case cmdAcceptInterrupt:
		ev.resultCh <- cmdResult{err: s.handleAcceptInterrupt(ev.interruptID)}
	case cmdRejectInterrupt:
		ev.resultCh <- cmdResult{err: s.handleRejectInterrupt(ev.interruptID, ev.reason)}
	case cmdSnapshot:
		ev.resultCh <- cmdResult{snapshot: s.buildSnapshot()}

	case evClockTick:
		s.handleClockTick(ev.gen, ev.remaining)
	case evClockExpired:
		s.handleClockExpired(ev.gen)
	case evStreamText:
		s.handleStreamText(ev.gen, ev.text)
	case evStreamDone:
		s.handleStreamDone(ev.gen)
	case evStreamError:
		s.handleStreamError(ev.gen, ev.err)
	case evInterruptTimeout:
		s.handleInterruptTimeout(ev.interruptID)
	case evFeedbackReady:
		s.handleFeedbackReady(ev.gen, ev.feedback)

	default:
		s.logger.Printf("[Scheduler] ⚠️ Unknown event: type=%s", ev.kind)
	}
}

// stale 判断异步事件是否携带过期代数。过期事件无条件丢弃：
// 这是"到期优先于同刻完成"与"取消后的迟到回调不得改状态"的执行点。
func (s *Scheduler) stale(gen int64, kind eventKind) bool {
	if gen != s.gen {
		s.logger.Printf("[Scheduler] Dropping stale event: type=%s gen=%d current=%d", kind, gen, s.gen)
		return true
	}
	return false
}

// ---- 命令处理 ----

func (s *Scheduler) handleStart(motion string) error {
	if strings.TrimSpace(motion) == "" {
		return fmt.Errorf("%w: motion must not be empty", ErrInvalidOperation)
	}
	if err := beginDebate(s.state, &s.cfg.Format, motion, time.Now()); err != nil {
		return err
	}

	speaker, _ := s.state.CurrentSpeaker()
	s.logger.Printf("[Scheduler] ✅ Debate started: session=%s motion=%q first=%s", s.cfg.SessionID, motion, speaker)
	s.appendEntry(model.EntryTransition, speaker,
		fmt.Sprintf("Debate opened on motion %q. %s takes the floor.", motion, speaker.DisplayName()), 0)
	s.deps.Notifier.NotifyStatus(s.cfg.SessionID, s.state.Status)
	s.beginTurn()
	s.persist()
	return nil
}

func (s *Scheduler) handlePause() error {
	if err := pauseDebate(s.state); err != nil {
		return err
	}
	// 生成继续在后台进行：暂停冻结的是时间预算，不是内容产出。
	s.clock.Pause()
	s.logger.Printf("[Scheduler] Debate paused: session=%s remaining=%ds", s.cfg.SessionID, s.state.TimeRemainingSec)
	s.deps.Notifier.NotifyStatus(s.cfg.SessionID, s.state.Status)
	s.persist()
	return nil
}

func (s *Scheduler) handleResume() error {
	if err := resumeDebate(s.state); err != nil {
		return err
	}
	s.logger.Printf("[Scheduler] Debate resumed: session=%s remaining=%ds", s.cfg.SessionID, s.state.TimeRemainingSec)
	s.deps.Notifier.NotifyStatus(s.cfg.SessionID, s.state.Status)
	if s.pendingAdvance {
		// 本轮在暂停期间已完结，发言条目早已落账：立即推进而不是复跑时钟。
		s.pendingAdvance = false
		s.advanceNow()
		return nil
	}
	s.clock.Resume()
	s.persist()
	return nil
}

func (s *Scheduler) handleReset() error {
	// 递增代数：重置后任何迟到的时钟/流/评审回调都会被丢弃。
	s.gen++

	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	s.carry = ""
	s.pendingAdvance = false
	s.clock.Stop()
	for id, timer := range s.poiTimers {
		timer.Stop()
		delete(s.poiTimers, id)
	}

	if err := s.deps.Transcript.Reset(s.ctx, s.cfg.SessionID); err != nil {
		s.logger.Printf("[Scheduler] ⚠️ Failed to reset transcript: session=%s err=%v", s.cfg.SessionID, err)
	}
	resetDebate(s.state)

	s.logger.Printf("[Scheduler] Debate reset: session=%s", s.cfg.SessionID)
	s.deps.Notifier.NotifyStatus(s.cfg.SessionID, s.state.Status)
	s.persist()
	return nil
}

func (s *Scheduler) handleRequestInterrupt(requester model.Role, content string) (*model.InterruptRequest, error) {
	speaker, ok := s.state.CurrentSpeaker()
	if !ok {
		return nil, poi.ErrNotActive
	}
	alloc := s.cfg.Format.AllocationSec[speaker]

	req, err := s.poi.Request(s.state, alloc, requester, content)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("[Scheduler] POI raised: session=%s id=%s %s → %s", s.cfg.SessionID, req.ID, req.Requester, req.Target)
	s.appendEntry(model.EntryInterruptRequest, req.Requester, content, 0)

	// 有界自动超时：accept/reject 先到则定时器作废。
	id := req.ID
	s.poiTimers[id] = time.AfterFunc(s.poi.Timeout(), func() {
		s.post(&event{kind: evInterruptTimeout, interruptID: id})
	})
	s.persist()
	return req, nil
}

func (s *Scheduler) handleAcceptInterrupt(id string) error {
	req, err := s.poi.Accept(s.state, id)
	if err != nil {
		return err
	}
	s.stopPOITimer(id)

	s.logger.Printf("[Scheduler] ✅ POI accepted: session=%s id=%s", s.cfg.SessionID, id)
	s.appendEntry(model.EntryInterruptResponse, req.Target,
		fmt.Sprintf("%s accepted the point of information from %s.", req.Target.DisplayName(), req.Requester.DisplayName()), 0)

	// 质询内容交给当前发言人的生成路径：冻结已讲出的部分，
	// 以续讲方式重开内容流，让发言人就地回应后继续。时钟不暂停。
	if s.active != nil && s.active.Speaker() == req.Target {
		partial := s.active.PartialText()
		s.active.Cancel()
		s.active = nil
		if strings.TrimSpace(partial) != "" {
			if s.carry != "" {
				s.carry += "\n\n"
			}
			s.carry += partial
		}
		s.reopenForInterrupt(req)
	}
	s.persist()
	return nil
}

func (s *Scheduler) handleRejectInterrupt(id, reason string) error {
	req, err := s.poi.Reject(s.state, id, reason)
	if err != nil {
		return err
	}
	s.stopPOITimer(id)

	content := fmt.Sprintf("%s declined the point of information from %s.", req.Target.DisplayName(), req.Requester.DisplayName())
	if reason != "" {
		content += " Reason: " + reason
	}
	s.logger.Printf("[Scheduler] POI rejected: session=%s id=%s", s.cfg.SessionID, id)
	s.appendEntry(model.EntryInterruptResponse, req.Target, content, 0)
	s.persist()
	return nil
}

// ---- 异步事件处理 ----

func (s *Scheduler) handleClockTick(gen int64, remaining int) {
	if s.stale(gen, evClockTick) {
		return
	}
	applyTick(s.state, remaining)
	if speaker, ok := s.state.CurrentSpeaker(); ok {
		s.deps.Notifier.NotifyTick(s.cfg.SessionID, speaker, s.state.TimeRemainingSec)
	}
}

func (s *Scheduler) handleClockExpired(gen int64) {
	if s.stale(gen, evClockExpired) {
		return
	}
	speaker, _ := s.state.CurrentSpeaker()
	s.logger.Printf("[Scheduler] ⏰ Time expired: session=%s speaker=%s", s.cfg.SessionID, speaker)

	// 到期裁掉发言：部分生成的文本整体作废，不形成 speech 条目。
	s.appendEntry(model.EntryTransition, speaker,
		fmt.Sprintf("%s ran out of time.", speaker.DisplayName()), 0)
	s.advanceNow()
}

func (s *Scheduler) handleStreamText(gen int64, text string) {
	if s.stale(gen, evStreamText) {
		return
	}
	speaker, ok := s.state.CurrentSpeaker()
	if !ok {
		return
	}
	full := text
	if s.carry != "" {
		full = s.carry + "\n\n" + text
	}
	s.deps.Notifier.NotifyText(s.cfg.SessionID, speaker, full)
}

func (s *Scheduler) handleStreamDone(gen int64) {
	if s.stale(gen, evStreamDone) {
		return
	}
	if s.active == nil {
		return
	}

	s.clock.Stop()
	text, wordCount, ok := s.active.Finalize()
	s.active = nil
	if !ok {
		// 句柄已被别的路径终结，completion 按过期处理。
		return
	}

	if s.carry != "" {
		text = s.carry + "\n\n" + text
		wordCount = len(strings.Fields(text))
	}
	speaker, _ := s.state.CurrentSpeaker()
	s.logger.Printf("[Scheduler] ✅ Speech finalized: session=%s speaker=%s words=%d", s.cfg.SessionID, speaker, wordCount)
	s.appendEntry(model.EntrySpeech, speaker, text, wordCount)
	s.advanceNow()
}

func (s *Scheduler) handleStreamError(gen int64, err error) {
	if s.stale(gen, evStreamError) {
		return
	}
	speaker, _ := s.state.CurrentSpeaker()
	s.logger.Printf("[Scheduler] ❌ Generation failed, skipping turn: session=%s speaker=%s err=%v", s.cfg.SessionID, speaker, err)

	// 失败的轮次跳过而不重试：辩论要在固定的总时间包络内推进。
	s.appendEntry(model.EntryTransition, speaker,
		fmt.Sprintf("%s could not produce a speech; the turn was skipped.", speaker.DisplayName()), 0)
	s.advanceNow()
}

func (s *Scheduler) handleInterruptTimeout(id string) {
	// 定时器迟到（请求已被裁决或会话已重置）不是错误，静默忽略。
	req, ok := s.poi.Expire(s.state, id)
	if !ok {
		return
	}
	delete(s.poiTimers, id)

	s.logger.Printf("[Scheduler] POI timed out: session=%s id=%s", s.cfg.SessionID, id)
	s.appendEntry(model.EntryInterruptResponse, req.Target,
		fmt.Sprintf("The point of information from %s went unanswered.", req.Requester.DisplayName()), 0)
	s.persist()
}

func (s *Scheduler) handleFeedbackReady(gen int64, feedback *model.DebateFeedback) {
	if s.stale(gen, evFeedbackReady) {
		return
	}
	if !attachFeedback(s.state, feedback) {
		return
	}
	s.logger.Printf("[Scheduler] ✅ Adjudication attached: session=%s winner=%s", s.cfg.SessionID, feedback.Winner)
	s.deps.Notifier.NotifyFeedback(s.cfg.SessionID, feedback)
	s.persist()
}

// ---- 轮次推进 ----

// advanceNow 推进到下一位发言人或结束会话。
// 调用前当前轮的 speech/transition 条目已写入。
func (s *Scheduler) advanceNow() {
	// 暂停不取消在途生成，所以流可能在 paused 状态下自然完结。
	// 此时条目已写入，推进挂起；resume 消费该标记后立即推进。
	if s.state.Status == model.StatusPaused {
		s.pendingAdvance = true
		s.logger.Printf("[Scheduler] Advance deferred while paused: session=%s", s.cfg.SessionID)
		s.persist()
		return
	}

	// 安全网：正常路径上句柄此刻已经终结。
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	s.carry = ""

	// 轮次结束时还未裁决的 POI 按超时归档。
	if pending := s.state.PendingInterrupt; pending != nil {
		if req, ok := s.poi.Expire(s.state, pending.ID); ok {
			s.stopPOITimer(req.ID)
			s.appendEntry(model.EntryInterruptResponse, req.Target,
				fmt.Sprintf("The point of information from %s went unanswered.", req.Requester.DisplayName()), 0)
		}
	}

	done, err := advanceTurn(s.state, &s.cfg.Format)
	if err != nil {
		s.logger.Printf("[Scheduler] ⚠️ Advance rejected: session=%s err=%v", s.cfg.SessionID, err)
		return
	}

	if done {
		s.clock.Stop()
		s.logger.Printf("[Scheduler] ✅ Debate completed: session=%s", s.cfg.SessionID)
		s.appendEntry(model.EntryTransition, "", "All speeches delivered. The debate is closed for adjudication.", 0)
		s.deps.Notifier.NotifyStatus(s.cfg.SessionID, s.state.Status)
		s.persist()
		s.evaluate()
		return
	}

	speaker, _ := s.state.CurrentSpeaker()
	s.appendEntry(model.EntryTransition, speaker,
		fmt.Sprintf("%s takes the floor.", speaker.DisplayName()), 0)
	s.beginTurn()
	s.persist()
}

// beginTurn 为当前发言人开启新一轮：递增代数、请求内容流、武装时钟。
// 只在 status == active 时调用。
func (s *Scheduler) beginTurn() {
	speaker, ok := s.state.CurrentSpeaker()
	if !ok {
		return
	}

	s.gen++
	s.carry = ""
	alloc := s.cfg.Format.AllocationSec[speaker]

	history, err := s.deps.Transcript.List(s.ctx, s.cfg.SessionID)
	if err != nil {
		s.logger.Printf("[Scheduler] ⚠️ Failed to load history: session=%s err=%v", s.cfg.SessionID, err)
		history = nil
	}

	messages, err := s.deps.Prompts.BuildTurnMessages(actor.TurnRequest{
		Speaker:       speaker,
		Motion:        s.state.Motion,
		History:       history,
		TimeBudgetSec: alloc,
	})
	if err != nil {
		s.handleStreamError(s.gen, err)
		return
	}

	s.active = s.deps.Streams.Open(stream.OpenRequest{
		SessionID: s.cfg.SessionID,
		Gen:       s.gen,
		Speaker:   speaker,
		Messages:  messages,
	}, s.streamCallbacks())

	s.clock.Arm(alloc, s.gen)
	s.clock.Start()
}

// reopenForInterrupt 以续讲方式为当前发言人重开内容流。
// 时钟从当前剩余时间继续，不重置预算。
func (s *Scheduler) reopenForInterrupt(req *model.InterruptRequest) {
	speaker := req.Target
	s.gen++

	history, err := s.deps.Transcript.List(s.ctx, s.cfg.SessionID)
	if err != nil {
		history = nil
	}

	messages, err := s.deps.Prompts.BuildTurnMessages(actor.TurnRequest{
		Speaker:            speaker,
		Motion:             s.state.Motion,
		History:            history,
		AcceptedInterrupts: []model.InterruptRequest{*req},
		PartialSpeech:      s.carry,
		TimeBudgetSec:      s.state.TimeRemainingSec,
	})
	if err != nil {
		s.handleStreamError(s.gen, err)
		return
	}

	s.active = s.deps.Streams.Open(stream.OpenRequest{
		SessionID: s.cfg.SessionID,
		Gen:       s.gen,
		Speaker:   speaker,
		Messages:  messages,
	}, s.streamCallbacks())

	remaining := s.clock.Remaining()
	s.clock.Arm(remaining, s.gen)
	if s.state.Status == model.StatusActive {
		s.clock.Start()
	}
}

func (s *Scheduler) streamCallbacks() stream.Callbacks {
	return stream.Callbacks{
		OnUpdate: func(gen int64, text string) {
			s.post(&event{kind: evStreamText, gen: gen, text: text})
		},
		OnDone: func(gen int64) {
			s.post(&event{kind: evStreamDone, gen: gen})
		},
		OnError: func(gen int64, err error) {
			s.post(&event{kind: evStreamError, gen: gen, err: err})
		},
	}
}

// evaluate 在独立 goroutine 中调用评审引擎，结果回投事件循环。
// 评审失败只记日志：反馈缺失不影响已完成的会话。
func (s *Scheduler) evaluate() {
	if s.deps.Evaluator == nil {
		return
	}
	gen := s.gen
	motion := s.state.Motion

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
		defer cancel()

		entries, err := s.deps.Transcript.List(ctx, s.cfg.SessionID)
		if err != nil {
			s.logger.Printf("[Scheduler] ⚠️ Adjudication skipped, transcript unavailable: session=%s err=%v", s.cfg.SessionID, err)
			return
		}
		feedback, err := s.deps.Evaluator.Evaluate(ctx, motion, entries)
		if err != nil {
			s.logger.Printf("[Scheduler] ⚠️ Adjudication failed: session=%s err=%v", s.cfg.SessionID, err)
			return
		}
		s.post(&event{kind: evFeedbackReady, gen: gen, feedback: feedback})
	}()
}

// ---- 辅助 ----

// appendEntry 写入 transcript 并通知订阅者。顺序由事件循环的串行性保证。
func (s *Scheduler) appendEntry(kind model.EntryKind, speaker model.Role, content string, wordCount int) {
	s.entryCounter++
	entry := &model.TranscriptEntry{
		EntryID:   fmt.Sprintf("e_%s_%d", s.cfg.SessionID, s.entryCounter),
		Speaker:   speaker,
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
		WordCount: wordCount,
	}
	seq, err := s.deps.Transcript.Append(s.ctx, s.cfg.SessionID, entry)
	if err != nil {
		s.logger.Printf("[Scheduler] ❌ Failed to append transcript entry: session=%s kind=%s err=%v", s.cfg.SessionID, kind, err)
		return
	}
	entry.Seq = seq
	s.deps.Notifier.NotifyTranscript(s.cfg.SessionID, *entry)
}

func (s *Scheduler) stopPOITimer(id string) {
	if timer, ok := s.poiTimers[id]; ok {
		timer.Stop()
		delete(s.poiTimers, id)
	}
}

// persist 把当前状态写回 session store（尽力而为）。
func (s *Scheduler) persist() {
	if s.deps.Sessions == nil {
		return
	}
	if err := s.deps.Sessions.Save(context.Background(), s.state); err != nil {
		s.logger.Printf("[Scheduler] ⚠️ Failed to save session: session=%s err=%v", s.cfg.SessionID, err)
	}
}

func (s *Scheduler) buildSnapshot() *model.DebateSnapshot {
	entries, err := s.deps.Transcript.List(s.ctx, s.cfg.SessionID)
	if err != nil {
		s.logger.Printf("[Scheduler] ⚠️ Snapshot transcript unavailable: session=%s err=%v", s.cfg.SessionID, err)
	}

	snap := &model.DebateSnapshot{
		SessionID:        s.state.SessionID,
		FormatID:         s.state.FormatID,
		Motion:           s.state.Motion,
		Status:           s.state.Status,
		SpeakingOrder:    append([]model.Role(nil), s.state.SpeakingOrder...),
		CurrentIndex:     s.state.CurrentIndex,
		TimeRemainingSec: s.state.TimeRemainingSec,
		Transcript:       entries,
	}
	if speaker, ok := s.state.CurrentSpeaker(); ok {
		snap.CurrentSpeaker = speaker
	}
	if s.active != nil {
		buffered := s.active.PartialText()
		if s.carry != "" {
			buffered = s.carry + "\n\n" + buffered
		}
		snap.ActiveGeneration = &model.ActiveGeneration{
			HandleID:     s.active.ID(),
			Speaker:      s.active.Speaker(),
			BufferedText: buffered,
		}
	}
	if s.state.PendingInterrupt != nil {
		pending := *s.state.PendingInterrupt
		snap.PendingInterrupt = &pending
	}
	if s.state.Feedback != nil {
		feedback := *s.state.Feedback
		snap.Feedback = &feedback
	}
	return snap
}
