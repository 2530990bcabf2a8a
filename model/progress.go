package model

import "time"

// ProgressState 扫描/匹配进度状态
type ProgressState string

const (
	ProgressPending  ProgressState = "pending"
	ProgressScanning ProgressState = "scanning"
	ProgressMatching ProgressState = "matching"
	ProgressRescue   ProgressState = "rescue"
	ProgressComplete ProgressState = "complete"
	ProgressError    ProgressState = "error"
)

// Terminal reports whether a progress state ends the record's life.
func (s ProgressState) Terminal() bool {
	return s == ProgressComplete || s == ProgressError
}

// ArtistProgress is the ephemeral per-artist scan record. It is
// overwritten wholesale on every update and evicted shortly after
// reaching a terminal state.
type ArtistProgress struct {
	ArtistID   string        `json:"artistId"`
	ArtistName string        `json:"artistName"`
	State      ProgressState `json:"state"`
	Progress   int           `json:"progress"` // 0-100
	Message    string        `json:"message"`
	SongCount  *int          `json:"songCount,omitempty"` // optional count-sync signal
	ObservedAt time.Time     `json:"-"`
}

// TaskState 后台任务状态
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskRunning    TaskState = "running"
	TaskPaused     TaskState = "paused"
	TaskCancelling TaskState = "cancelling"
	TaskCancelled  TaskState = "cancelled"
	TaskCompleted  TaskState = "completed"
	TaskError      TaskState = "error"
)

// TaskInfo is the durable job record (e.g. a cancellable bulk
// download). Entries are kept until the consumer dismisses them;
// the registry never expires them on its own.
type TaskInfo struct {
	TaskID     string         `json:"taskId"`
	TaskType   string         `json:"taskType"`
	State      TaskState      `json:"state"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	ObservedAt time.Time      `json:"-"`
}

// TaskControlResponse is the acknowledgement for pause/resume/cancel.
type TaskControlResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}
