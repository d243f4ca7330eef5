package job

import (
	"time"
)

// Job is one failed record kept for operator replay. Payload is the raw
// inbound body, which may not be valid JSON.
type Job struct {
	ID          string    `json:"id"`
	ContentID   string    `json:"content_id"`
	ContentType string    `json:"content_type"`
	ErrorCode   string    `json:"error_code"`
	FailedStep  string    `json:"failed_step"`
	Payload     string    `json:"payload"`
	Error       string    `json:"error"`
	Retries     int       `json:"retries"`
	CreatedAt   time.Time `json:"created_at"`
}
