package payroll

import "time"

// OutcomeKind is the terminal state of one employee within a run.
type OutcomeKind string

const (
	OutcomeProcessed OutcomeKind = "processed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// Stage names the step a failure happened in, for diagnosis.
const (
	StageRender = "render"
	StageStore  = "store"
)

// Outcome is the recorded result of processing one employee.
// Processed outcomes carry ArtifactRef; Failed outcomes carry ErrorDetail
// and Stage; Skipped outcomes carry neither.
type Outcome struct {
	EmployeeID   string      `json:"employee_id"`
	EmployeeName string      `json:"employee_name"`
	Kind         OutcomeKind `json:"status"`
	ArtifactRef  string      `json:"artifact_ref,omitempty"`
	ErrorDetail  string      `json:"error,omitempty"`
	Stage        string      `json:"stage,omitempty"`
	SessionID    string      `json:"session_id"`
	Timestamp    time.Time   `json:"timestamp"`
}

// SessionStatus is the lifecycle state of a batch run's bookkeeping.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "in_progress"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session summarizes one batch run.
type Session struct {
	ID         string        `json:"session_id"`
	Status     SessionStatus `json:"status"`
	SourceRef  string        `json:"source_ref,omitempty"`
	SourceName string        `json:"source_name,omitempty"`
	Total      int           `json:"total_employees"`
	Processed  int           `json:"processed_count"`
	Failed     int           `json:"failed_count"`
	Skipped    int           `json:"skipped_count"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
}

// Terminal reports whether the session has ended.
func (s Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionFailed
}
