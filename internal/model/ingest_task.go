package model

const (
	TaskStatusPending = "PENDING"
	TaskStatusStarted = "STARTED"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailure = "FAILURE"
)

type IngestTask struct {
	ID        string   `json:"task_id" db:"id"`
	Filename  string   `json:"filename" db:"filename"`
	Category  Category `json:"category" db:"category"`
	SessionID string   `json:"session_id" db:"session_id"`
	Status    string   `json:"status" db:"status"`
	Attempts  int      `json:"attempts" db:"attempts"`
	Chunks    int      `json:"chunks" db:"chunks"`
	Error     string   `json:"error,omitempty" db:"error"`
	Ctime     int64    `json:"ctime" db:"ctime"`
	Mtime     int64    `json:"mtime" db:"mtime"`
}

func (t *IngestTask) Finished() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusFailure
}
