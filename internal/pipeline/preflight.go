package pipeline

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/render"
)

// Preflight sends one live test message to an operator mailbox using a
// real lead, exercising the full render/PDF/send path. The lead is not
// mutated and no job exists; the send-log row carries a nil job id.
func (p *Pipeline) Preflight(ctx context.Context, campaign domain.Campaign, lead domain.Lead, recipient string) (domain.EmailTask, error) {
	task := domain.EmailTask{
		ID:             uuid.New(),
		CampaignID:     campaign.ID,
		Recipient:      recipient,
		AttachmentName: attachmentName,
		CreatedAt:      p.clock(),
	}

	err := p.runPreflight(ctx, campaign, lead, recipient, &task)
	if err == nil {
		now := p.clock()
		task.Status = domain.TaskStatusSent
		task.SentAt = &now
	} else {
		class := Classify(err)
		if class == FailureInfra {
			return task, err
		}
		task.Status = taskStatus(class)
		task.ErrorMessage = err.Error()
	}

	if insErr := p.store.InsertEmailTask(ctx, task); insErr != nil {
		log.Printf("pipeline: record preflight task: %v", insErr)
	}
	return task, err
}

func (p *Pipeline) runPreflight(ctx context.Context, campaign domain.Campaign, lead domain.Lead, recipient string, task *domain.EmailTask) error {
	sender, err := p.resolveSender(ctx, uuid.Nil)
	if err != nil {
		return err
	}
	task.SenderEmail = sender.Email

	if err := ValidateLead(&lead); err != nil {
		return validationErr(err)
	}

	prepared, err := p.Prepare(ctx, campaign, sender, lead)
	if err != nil {
		return err
	}
	task.Subject = prepared.Subject
	task.BodyPreview = render.Preview(prepared.HTMLBody, previewMax)

	return p.send(ctx, sender, recipient, prepared)
}
