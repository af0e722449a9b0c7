package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPaused     JobStatus = "paused"
	JobStatusSent       JobStatus = "sent"
	JobStatusFailed     JobStatus = "failed"
)

// CampaignJob is one scheduled attempt to send a campaign email to one lead.
//
// Status moves along pending → processing → {sent|failed}, with pending ⇄ paused
// driven by the engine pause/resume path. Only the dispatch loop may set
// processing; the claim is a single atomic select-and-mark.
type CampaignJob struct {
	ID         uuid.UUID
	CampaignID uuid.UUID

	LeadID    int64
	LeadTable string

	SenderID     uuid.UUID
	ContactEmail string

	Status             JobStatus
	NextProcessingTime time.Time
	ErrorMessage       string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
