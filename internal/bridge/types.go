package bridge

import (
	"errors"

	"voxelcraft.ai/goalbot/internal/protocol"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrTaskFailed   = errors.New("task failed")
	ErrTaskTimeout  = errors.New("task timed out")
	ErrUnsupported  = errors.New("unsupported by the world server")
	ErrNoRecipe     = errors.New("no recipe")
)

// TaskError is a TASK_FAIL reported by the world for one submitted task.
type TaskError struct {
	TaskID  string
	Kind    string
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	return "task " + e.TaskID + " failed: " + protocol.CodeText(e.Code, e.Message)
}

func (e *TaskError) Unwrap() error { return ErrTaskFailed }

// Retryable reports whether the failure is transient.
func (e *TaskError) Retryable() bool { return protocol.IsRetryable(e.Code) }

type Status struct {
	Connected   bool   `json:"connected"`
	AgentID     string `json:"agent_id,omitempty"`
	URL         string `json:"url"`
	LastObsTick uint64 `json:"last_obs_tick"`
	Pending     int    `json:"pending_tasks"`
	LastError   string `json:"last_error,omitempty"`
}

// Printer receives one line per finished task; agent.State satisfies it.
type Printer interface {
	Printf(format string, args ...any)
}
