package types

// Event 事件接口
// 所有事件类型都实现此接口，供发布引擎的观察者按类型区分
type Event interface {
	EventType() string
}

// RunStateChangedEvent 发布流程状态变更事件
type RunStateChangedEvent struct {
	RunID    string `json:"runId"`
	Platform string `json:"platform"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// EventType 返回事件类型
func (e RunStateChangedEvent) EventType() string { return "run_state_changed" }

// StepOutcomeEvent 单个步骤的执行结果
type StepOutcomeEvent struct {
	RunID    string `json:"runId"`
	Platform string `json:"platform"`
	Step     string `json:"step"`
	Outcome  string `json:"outcome"` // success / recoverable / fatal
	Error    string `json:"error,omitempty"`
}

// EventType 返回事件类型
func (e StepOutcomeEvent) EventType() string { return "step_outcome" }

// RunCompleteEvent 发布流程结束事件
type RunCompleteEvent struct {
	RunID    string `json:"runId"`
	Platform string `json:"platform"`
	State    string `json:"state"` // done / failed
	Error    string `json:"error,omitempty"`
}

// EventType 返回事件类型
func (e RunCompleteEvent) EventType() string { return "run_complete" }

// RunSkippedEvent 已有流程在运行，本次调用被忽略
type RunSkippedEvent struct {
	Platform string `json:"platform"`
}

// EventType 返回事件类型
func (e RunSkippedEvent) EventType() string { return "run_skipped" }
