package diag

import "time"

// Job lifecycle states in the registry.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobRecord is the persisted state of one detached run. It outlives the
// request that started it so poll calls can arrive in a completely
// separate invocation of the adapter.
type JobRecord struct {
	ID           string
	PID          int
	SpoolDir     string
	ToolPath     string
	OutputPath   string
	OutputFormat string
	Status       string
	RC           int
	Msg          string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// JobStore is the durable job registry. Reads must be side-effect free
// so concurrent polls stay idempotent.
type JobStore interface {
	Create(rec *JobRecord) error
	Get(id string) (*JobRecord, error)
	List() ([]*JobRecord, error)
	SetPID(id string, pid int) error
	MarkCompleted(id string, rc int) error
	MarkFailed(id string, msg string) error
}
