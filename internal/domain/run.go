package domain

import "time"

// RunStatus enumerates pipeline states.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Summary is the terminal report of one run.
type Summary struct {
	RunID      string
	Status     RunStatus
	Written    int
	Cause      error
	StartedAt  time.Time
	FinishedAt time.Time
}

// FileTarget selects the CSV sink.
type FileTarget struct {
	// Name defaults to a timestamped file name when empty.
	Name      string
	Directory string
}

// DatabaseTarget selects the relational sink.
type DatabaseTarget struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Table    string
}

// SinkTarget holds exactly one of File or Database.
type SinkTarget struct {
	File     *FileTarget
	Database *DatabaseTarget
}
