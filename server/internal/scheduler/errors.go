package scheduler

import "errors"

var (
	// ErrInvalidOperation 命令在当前会话状态下不合法（如 idle 时 pause）。
	// 同步返回给调用方，不重试、不静默吸收。
	ErrInvalidOperation = errors.New("invalid operation for current session status")
	// ErrClosed 调度器已关闭，不再接受命令。
	ErrClosed = errors.New("scheduler closed")
	// ErrTimeout 命令排队或等待处理超时。
	ErrTimeout = errors.New("timeout waiting for scheduler")
)
