package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusSent              TaskStatus = "SENT"
	TaskStatusFailedToSend      TaskStatus = "FAILED_TO_SEND"
	TaskStatusFailedPreparation TaskStatus = "FAILED_PREPARATION"
	TaskStatusFailedValidation  TaskStatus = "FAILED_VALIDATION"
)

// EmailTask is an append-only record of one attempted send.
// Rows are never mutated after creation.
type EmailTask struct {
	ID uuid.UUID

	JobID      *uuid.UUID // nil for preflight sends
	CampaignID uuid.UUID

	SenderEmail string
	Recipient   string

	Subject     string
	BodyPreview string

	Status       TaskStatus
	ErrorMessage string

	AttachmentName string

	CreatedAt time.Time
	SentAt    *time.Time
}
