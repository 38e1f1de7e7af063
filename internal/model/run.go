package model

import "time"

// RunStatus is the lifecycle state of a merge run
type RunStatus string

// Run status constants
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Outcome is the result of one recipient's single send attempt
type Outcome struct {
	Position    int       `json:"position"`
	Recipient   Recipient `json:"recipient"`
	Succeeded   bool      `json:"succeeded"`
	Err         error     `json:"-"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

// Summary aggregates the outcomes of one merge run. Only counts are
// order-independent; Failures keeps detail for the current session.
type Summary struct {
	RunID      string    `json:"runId"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failures   []Outcome `json:"failures,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Record adds an outcome to the summary
func (s *Summary) Record(o Outcome) {
	s.Attempted++
	if o.Succeeded {
		s.Succeeded++
		return
	}
	s.Failures = append(s.Failures, o)
}

// Failed returns the number of failed attempts
func (s *Summary) Failed() int {
	return s.Attempted - s.Succeeded
}

// Progress is the live state of a merge run as shown to the user
type Progress struct {
	RunID     string    `json:"runId"`
	Status    RunStatus `json:"status"`
	Total     int       `json:"total"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Percent returns sent/total in [0,1]. An empty run is vacuously complete.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Sent) / float64(p.Total)
}

// Run is a persisted merge run
type Run struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	Provider   string     `json:"provider"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}
