package api

import (
	"fmt"
	"net/mail"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
)

func validateEngineControl(req EngineControlRequest) error {
	if req.Run == nil && req.Pause == nil {
		return fmt.Errorf("one of run or pause is required")
	}
	if req.Run != nil && req.Pause != nil {
		return fmt.Errorf("set either run or pause, not both")
	}
	return nil
}

func validateRecipient(addr string) error {
	if addr == "" {
		return fmt.Errorf("recipient is required")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	return nil
}

// validateJobStatus rejects status filter values outside the job state
// machine so typos surface as 400s instead of silent empty lists.
func validateJobStatus(status string) error {
	switch domain.JobStatus(status) {
	case "", domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusPaused,
		domain.JobStatusSent, domain.JobStatusFailed:
		return nil
	}
	return fmt.Errorf("unknown job status %q", status)
}

func validateTaskStatus(status string) error {
	switch domain.TaskStatus(status) {
	case "", domain.TaskStatusSent, domain.TaskStatusFailedToSend,
		domain.TaskStatusFailedPreparation, domain.TaskStatusFailedValidation:
		return nil
	}
	return fmt.Errorf("unknown task status %q", status)
}
