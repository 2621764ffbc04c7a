package expression

import "time"

type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// rank orders statuses along QUEUED -> RUNNING -> terminal.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 1
	case StatusRunning:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	}
	return 0
}

// JobState is one status report from the inference service.
type JobState struct {
	Status         Status
	Message        string
	CreatedAt      time.Time
	StartedAt      time.Time
	EndedAt        time.Time
	NumErrors      int
	NumPredictions int
}

type Transition struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

// Job is the client-side view of a submitted batch job.
type Job struct {
	ID             string       `json:"id"`
	Status         Status       `json:"status"`
	Message        string       `json:"message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        time.Time    `json:"ended_at"`
	NumErrors      int          `json:"num_errors"`
	NumPredictions int          `json:"num_predictions"`
	Polls          int          `json:"polls"`
	Transitions    []Transition `json:"transitions,omitempty"`
}

// Score is one (action unit, score) pair of a frame.
type Score struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Frame struct {
	Frame int     `json:"frame"`
	Time  float64 `json:"time"`
	FACS  []Score `json:"facs"`
}

// Prediction holds the per-frame action units of one submitted file.
type Prediction struct {
	File   string  `json:"file"`
	Frames []Frame `json:"frames"`
}

// Config selects the models run by the batch job.
type Config struct {
	FACS bool
}
