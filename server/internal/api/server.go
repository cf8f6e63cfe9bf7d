package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"debate-sim/server/internal/actor"
	"debate-sim/server/internal/config"
	"debate-sim/server/internal/domain"
	"debate-sim/server/internal/eval"
	"debate-sim/server/internal/gateway"
	"debate-sim/server/internal/llm"
	"debate-sim/server/internal/model"
	"debate-sim/server/internal/poi"
	"debate-sim/server/internal/scheduler"
	"debate-sim/server/internal/session"
	"debate-sim/server/internal/stream"
	"debate-sim/server/internal/transcript"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server 对外 HTTP/WebSocket 门面。
// 命令走 HTTP，通知走每个会话的 WebSocket 流。
type Server struct {
	config  *config.Config
	formats []model.DebateFormat

	llmClient   llm.Client
	prompts     *actor.Engine
	sessions    session.Store
	transcripts transcript.Store

	// debates 所有活跃会话的运行时 (sessionID -> debateRuntime)
	debates   map[string]*debateRuntime
	debatesMu sync.RWMutex

	upgrader websocket.Upgrader
	logger   *log.Logger
	now      func() time.Time
}

// debateRuntime 一个会话的调度器与通知枢纽。
type debateRuntime struct {
	scheduler *scheduler.Scheduler
	hub       *gateway.Hub
	format    model.DebateFormat
}

func NewServer(cfg *config.Config) (*Server, error) {
	formats, err := domain.LoadFormats(cfg.Paths.Formats)
	if err != nil {
		return nil, fmt.Errorf("load formats: %w", err)
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	prompts, err := actor.NewEngine(cfg.Actor.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("init prompt engine: %w", err)
	}

	return &Server{
		config:      cfg,
		formats:     formats,
		llmClient:   client,
		prompts:     prompts,
		sessions:    session.NewInMemoryStore(),
		transcripts: transcript.NewInMemoryStore(),
		debates:     make(map[string]*debateRuntime),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 开发期允许本地跨域，生产环境应改为白名单
				origin := r.Header.Get("Origin")
				return origin == "" || origin == "http://localhost:5173" || origin == "http://127.0.0.1:5173"
			},
		},
		logger: log.Default(),
		now:    time.Now,
	}, nil
}

func (s *Server) Routes() http.Handler {
	// Gin 统一承载中间件与路由，便于扩展日志/鉴权/限流等能力。
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/api/formats", s.handleFormats)
	engine.POST("/api/debates", s.handleCreateDebate)
	engine.GET("/api/debates/:id", s.handleGetDebate)
	engine.DELETE("/api/debates/:id", s.handleDeleteDebate)
	engine.POST("/api/debates/:id/start", s.handleStart)
	engine.POST("/api/debates/:id/pause", s.handlePause)
	engine.POST("/api/debates/:id/resume", s.handleResume)
	engine.POST("/api/debates/:id/reset", s.handleReset)
	engine.POST("/api/debates/:id/poi", s.handleRequestPOI)
	engine.POST("/api/debates/:id/poi/:poiID/accept", s.handleAcceptPOI)
	engine.POST("/api/debates/:id/poi/:poiID/reject", s.handleRejectPOI)
	engine.GET("/api/debates/:id/stream", s.handleStream)
	return engine
}

// Shutdown 关闭所有活跃会话的调度器与网关。
func (s *Server) Shutdown() {
	s.debatesMu.Lock()
	defer s.debatesMu.Unlock()
	for id, rt := range s.debates {
		rt.scheduler.Close()
		rt.hub.Close()
		delete(s.debates, id)
	}
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleFormats 返回所有可用赛制。
func (s *Server) handleFormats(c *gin.Context) {
	c.JSON(http.StatusOK, s.formats)
}

type createDebateRequest struct {
	FormatID string `json:"format_id"`
}

// handleCreateDebate 创建一个 idle 会话；辩题在 start 时才写入。
func (s *Server) handleCreateDebate(c *gin.Context) {
	var req createDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.FormatID == "" {
		req.FormatID = s.config.Debate.DefaultFormat
	}

	format, ok := domain.FindFormat(s.formats, req.FormatID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "format_id not found"})
		return
	}

	sessionID := newDebateID()
	hub := gateway.NewHub(s.config.Server.PingInterval, s.logger)
	sched := scheduler.New(scheduler.Config{
		SessionID: sessionID,
		Format:    format,
	}, scheduler.Deps{
		Prompts:    s.prompts,
		Streams:    stream.NewAdapter(s.llmClient, s.config.Debate.TextFlushInterval),
		Evaluator:  eval.NewLLMEngine(s.llmClient),
		Transcript: s.transcripts,
		Sessions:   s.sessions,
		Notifier:   hub,
		Logger:     s.logger,
	})

	s.debatesMu.Lock()
	s.debates[sessionID] = &debateRuntime{scheduler: sched, hub: hub, format: format}
	s.debatesMu.Unlock()

	snap, err := sched.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// handleGetDebate 返回会话快照。
func (s *Server) handleGetDebate(c *gin.Context) {
	id := c.Param("id")
	s.debatesMu.RLock()
	rt, ok := s.debates[id]
	s.debatesMu.RUnlock()

	if !ok {
		// 没有活跃运行时则退回落盘状态（调度器每次变更后都会 Save）。
		state, err := s.sessions.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
			return
		}
		c.JSON(http.StatusOK, state)
		return
	}

	snap, err := rt.scheduler.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleDeleteDebate 关闭并移除会话。
func (s *Server) handleDeleteDebate(c *gin.Context) {
	id := c.Param("id")

	s.debatesMu.Lock()
	rt, ok := s.debates[id]
	if ok {
		delete(s.debates, id)
	}
	s.debatesMu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
		return
	}

	rt.scheduler.Close()
	rt.hub.Close()
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.logger.Printf("[API] ⚠️ Failed to delete session: id=%s err=%v", id, err)
	}
	_ = s.transcripts.Reset(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type startDebateRequest struct {
	Motion string `json:"motion"`
}

// handleStart 开始辩论。
func (s *Server) handleStart(c *gin.Context) {
	rt, ok := s.runtime(c)
	if !ok {
		return
	}
	var req startDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Motion) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "motion required"})
		return
	}

	if err := rt.scheduler.Start(req.Motion); err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true})
}

func (s *Server) handlePause(c *gin.Context) {
	s.simpleCommand(c, func(rt *debateRuntime) error { return rt.scheduler.Pause() })
}

func (s *Server) handleResume(c *gin.Context) {
	s.simpleCommand(c, func(rt *debateRuntime) error { return rt.scheduler.Resume() })
}

func (s *Server) handleReset(c *gin.Context) {
	s.simpleCommand(c, func(rt *debateRuntime) error { return rt.scheduler.Reset() })
}

type requestPOIRequest struct {
	Requester string `json:"requester"`
	Content   string `json:"content"`
}

// handleRequestPOI 提出质询。校验失败返回 409 与具体原因。
func (s *Server) handleRequestPOI(c *gin.Context) {
	rt, ok := s.runtime(c)
	if !ok {
		return
	}
	var req requestPOIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Requester == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requester and content required"})
		return
	}

	created, err := rt.scheduler.RequestInterrupt(model.Role(req.Requester), req.Content)
	if err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleAcceptPOI(c *gin.Context) {
	rt, ok := s.runtime(c)
	if !ok {
		return
	}
	if err := rt.scheduler.AcceptInterrupt(c.Param("poiID")); err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

type rejectPOIRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectPOI(c *gin.Context) {
	rt, ok := s.runtime(c)
	if !ok {
		return
	}
	var req rejectPOIRequest
	_ = c.ShouldBindJSON(&req) // body 可选
	if err := rt.scheduler.RejectInterrupt(c.Param("poiID"), req.Reason); err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": true})
}

// handleStream 把连接升级为 WebSocket 并订阅该会话的通知。
func (s *Server) handleStream(c *gin.Context) {
	rt, ok := s.runtime(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("[API] ❌ WebSocket upgrade failed: %v", err)
		return
	}
	rt.hub.Register(conn)
}

// ---- 辅助 ----

// runtime 解析路径中的会话 ID；不存在时写 404 并返回 ok=false。
func (s *Server) runtime(c *gin.Context) (*debateRuntime, bool) {
	id := c.Param("id")
	s.debatesMu.RLock()
	rt, ok := s.debates[id]
	s.debatesMu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
		return nil, false
	}
	return rt, true
}

func (s *Server) simpleCommand(c *gin.Context, command func(*debateRuntime) error) {
	rt, ok := s.runtime(c)
	if !ok {
		return
	}
	if err := command(rt); err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// writeCommandError 把调度器错误映射为 HTTP 状态码：
// 状态机拒绝与 POI 校验失败都是调用方时机问题，统一 409。
func (s *Server) writeCommandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrInvalidOperation),
		errors.Is(err, poi.ErrSelfInterrupt),
		errors.Is(err, poi.ErrNotActive),
		errors.Is(err, poi.ErrProtectedWindow),
		errors.Is(err, poi.ErrAlreadyPending),
		errors.Is(err, poi.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func newDebateID() string {
	return fmt.Sprintf("D_%d", time.Now().UnixNano())
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		// 开发期：允许本地 Vite；线上应改为白名单或同源。
		if origin == "http://localhost:5173" || origin == "http://127.0.0.1:5173" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
