package digestmail

import "time"

// Image is one registered draft image
type Image struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	ContentIndex int    `json:"contentIndex"`
	Placeholder  string `json:"placeholder"`
}

// Draft is the server's editing session
type Draft struct {
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Images  []Image `json:"images"`
	Sending bool    `json:"sending"`
}

// Preview is a draft rendered for one sample recipient
type Preview struct {
	HTML       string   `json:"html"`
	UsedImages []string `json:"usedImages"`
}

// Run status values reported by Progress.Status
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Progress is the latest state of a send run
type Progress struct {
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Done reports whether the run has finished
func (p *Progress) Done() bool {
	return p.Status != RunStatusRunning
}

// Run is a recorded send run
type Run struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	Provider   string     `json:"provider"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type updateDraftRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type previewRequest struct {
	FullName string `json:"fullName"`
}

type sendResponse struct {
	RunID   string `json:"runId"`
	Message string `json:"message"`
}

type uploadResponse struct {
	Images  []Image `json:"images"`
	Message string  `json:"message"`
}

type loadResponse struct {
	Message string `json:"message"`
	Draft   Draft  `json:"draft"`
}

type runsResponse struct {
	Runs []Run `json:"runs"`
}
