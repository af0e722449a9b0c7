package api

import "time"

// EngineControlRequest toggles the engine. Exactly one field may be set:
// run starts or stops dispatching, pause freezes pending jobs (pause=false
// resumes them with their schedule shifted by the pause duration).
type EngineControlRequest struct {
	Run   *bool `json:"run,omitempty"`
	Pause *bool `json:"pause,omitempty"`
}

// PreflightRequest asks for a live test send. Recipient defaults to the
// configured operator mailbox.
type PreflightRequest struct {
	Recipient string `json:"recipient,omitempty"`
}

type EngineStatusResponse struct {
	Success   bool    `json:"success"`
	IsRunning bool    `json:"is_running"`
	IsPaused  bool    `json:"is_paused"`
	PausedAt  *string `json:"paused_at,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

// ActionResponse acknowledges a state-changing request. Affected carries
// the number of jobs the action touched, where that is meaningful.
type ActionResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Affected int64  `json:"affected,omitempty"`
}

type JobResponse struct {
	ID                 string `json:"id"`
	CampaignID         string `json:"campaign_id"`
	LeadID             int64  `json:"lead_id"`
	LeadTable          string `json:"lead_table"`
	SenderID           string `json:"sender_id,omitempty"`
	ContactEmail       string `json:"contact_email"`
	Status             string `json:"status"`
	NextProcessingTime string `json:"next_processing_time"`
	ErrorMessage       string `json:"error_message,omitempty"`
	CreatedAt          string `json:"created_at"`
	CompletedAt        string `json:"completed_at,omitempty"`
}

type TaskResponse struct {
	ID             string `json:"id"`
	JobID          string `json:"job_id,omitempty"`
	CampaignID     string `json:"campaign_id"`
	SenderEmail    string `json:"sender_email"`
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject"`
	BodyPreview    string `json:"body_preview,omitempty"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"error_message,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	CreatedAt      string `json:"created_at"`
	SentAt         string `json:"sent_at,omitempty"`
}

type ListJobsResponse struct {
	Success bool          `json:"success"`
	Jobs    []JobResponse `json:"jobs"`
}

type ListTasksResponse struct {
	Success bool           `json:"success"`
	Tasks   []TaskResponse `json:"tasks"`
}

type PreflightResponse struct {
	Success bool         `json:"success"`
	Task    TaskResponse `json:"task"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
