// Package gateway 把调度器的会话通知广播给 WebSocket 订阅者。
// 网关只做单向推送：命令走 HTTP API，不经过这条通道。
package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"debate-sim/server/internal/model"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Hub 维护一个会话的全部订阅连接并向它们广播 ServerMessage。
// 实现 scheduler.Notifier；广播不阻塞调度器：写失败的连接被直接摘除。
type Hub struct {
	pingInterval time.Duration
	logger       *log.Logger

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	seq     int64
	closed  bool
}

// subscriber 单个客户端连接。写操作用锁串行化（gorilla 连接不允许并发写）。
type subscriber struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewHub 创建广播枢纽。
func NewHub(pingInterval time.Duration, logger *log.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		pingInterval: pingInterval,
		logger:       logger,
		subs:         make(map[*subscriber]struct{}),
	}
}

// Register 接管一条已升级的 WebSocket 连接：
// 启动保活 ping 与读循环（只为感知客户端断开，入站帧全部忽略）。
func (h *Hub) Register(conn *websocket.Conn) {
	sub := &subscriber{
		conn: conn,
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Printf("[Gateway] Client subscribed: remote=%s total=%d", conn.RemoteAddr(), count)

	go h.pingLoop(sub)
	go h.readLoop(sub)
}

// SubscriberCount 返回当前在线的订阅者数量。
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close 断开所有订阅者。之后的 Register 会被拒绝。
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// ---- scheduler.Notifier ----

func (h *Hub) NotifyStatus(sessionID string, status model.Status) {
	h.broadcast(&ServerMessage{Type: EventStatus, SessionID: sessionID, Status: status})
}

func (h *Hub) NotifyTick(sessionID string, speaker model.Role, remaining int) {
	h.broadcast(&ServerMessage{Type: EventTick, SessionID: sessionID, Speaker: speaker, RemainingSec: remaining})
}

func (h *Hub) NotifyText(sessionID string, speaker model.Role, text string) {
	h.broadcast(&ServerMessage{Type: EventSpeechText, SessionID: sessionID, Speaker: speaker, Text: text})
}

func (h *Hub) NotifyTranscript(sessionID string, entry model.TranscriptEntry) {
	h.broadcast(&ServerMessage{Type: EventTranscript, SessionID: sessionID, Speaker: entry.Speaker, Entry: &entry})
}

func (h *Hub) NotifyFeedback(sessionID string, feedback *model.DebateFeedback) {
	h.broadcast(&ServerMessage{Type: EventFeedback, SessionID: sessionID, Feedback: feedback})
}

// broadcast 给消息分配序列号并写给所有订阅者。
func (h *Hub) broadcast(msg *ServerMessage) {
	msg.ServerTS = time.Now()

	h.mu.Lock()
	h.seq++
	msg.Seq = h.seq
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("[Gateway] ❌ Failed to marshal message: type=%s err=%v", msg.Type, err)
		return
	}

	for _, sub := range subs {
		if err := sub.write(websocket.TextMessage, data); err != nil {
			h.logger.Printf("[Gateway] ⚠️ Write failed, dropping subscriber: remote=%s err=%v", sub.conn.RemoteAddr(), err)
			h.unregister(sub)
		}
	}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.close()
}

// readLoop 消费入站帧直到连接断开。入站数据本身被忽略。
func (h *Hub) readLoop(sub *subscriber) {
	defer h.unregister(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop 周期性发送 ping 保活。
func (h *Hub) pingLoop(sub *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
			sub.writeMu.Lock()
			err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteTimeout))
			sub.writeMu.Unlock()
			if err != nil {
				h.unregister(sub)
				return
			}
		}
	}
}

func (sub *subscriber) write(messageType int, data []byte) error {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()

	sub.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return sub.conn.WriteMessage(messageType, data)
}

func (sub *subscriber) close() {
	sub.closeOnce.Do(func() {
		close(sub.done)
		sub.conn.Close()
	})
}
