// Package pipeline runs one claimed campaign job end to end: resolve the
// sender mailbox, load and validate the lead, render the email and the
// letter of intent, generate the PDF, submit through the impersonated
// mailbox, and record the outcome in the append-only send log.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/truesoulcoder/crm-admin-sub001/internal/circuitbreaker"
	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/mail"
	"github.com/truesoulcoder/crm-admin-sub001/internal/metrics"
	"github.com/truesoulcoder/crm-admin-sub001/internal/render"
)

const (
	attachmentName = "letter-of-intent.pdf"
	previewMax     = 512
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error)
	GetActiveSenders(ctx context.Context) ([]domain.Sender, error)
	GetSenderByID(ctx context.Context, id uuid.UUID) (domain.Sender, error)
	GetLeadByID(ctx context.Context, table string, leadID int64) (domain.Lead, error)
	InsertEmailTask(ctx context.Context, task domain.EmailTask) error
	MarkJobSent(ctx context.Context, jobID uuid.UUID, now time.Time) error
	MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string, now time.Time) error
	CompleteCampaignIfDone(ctx context.Context, id uuid.UUID, now time.Time) error
}

// Compositor turns rendered HTML into the final letterheaded PDF.
type Compositor interface {
	Compose(ctx context.Context, html string) ([]byte, error)
}

// Mailer submits a composed message and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, email mail.OutboundEmail) (string, error)
}

// Breaker gates sends per mailbox.
type Breaker interface {
	Allow(mailbox string) error
	RecordSuccess(mailbox string)
	RecordFailure(mailbox string)
}

// Analytics records per-day send counters.
type Analytics interface {
	RecordOutcome(ctx context.Context, campaignID uuid.UUID, senderEmail, outcome string, day time.Time) error
}

type Pipeline struct {
	store      Store
	compositor Compositor
	mailer     Mailer

	breaker   Breaker
	analytics Analytics
	metrics   metrics.Sink

	logo  []byte
	clock func() time.Time
}

func New(store Store, compositor Compositor, mailer Mailer) *Pipeline {
	return &Pipeline{
		store:      store,
		compositor: compositor,
		mailer:     mailer,
		metrics:    metrics.NewNoopSink(),
		clock:      time.Now,
	}
}

func (p *Pipeline) WithBreaker(b Breaker) *Pipeline {
	p.breaker = b
	return p
}

func (p *Pipeline) WithAnalytics(a Analytics) *Pipeline {
	p.analytics = a
	return p
}

func (p *Pipeline) WithMetrics(sink metrics.Sink) *Pipeline {
	p.metrics = sink
	return p
}

// WithLogo embeds the given image as cid:logo in every outbound body.
func (p *Pipeline) WithLogo(logo []byte) *Pipeline {
	p.logo = logo
	return p
}

// Prepared is a fully rendered, ready-to-send message.
type Prepared struct {
	Subject  string
	HTMLBody string
	Document []byte
}

// attempt carries whatever was resolved before a step failed, so the
// failure record names the sender and recipient when they are known.
type attempt struct {
	sender    domain.Sender
	recipient string
	subject   string
	preview   string
}

// Process runs one claimed job. The job is already in processing; it
// always leaves as sent or failed unless the store itself is down, in
// which case the stale-job reconciler picks it up.
func (p *Pipeline) Process(ctx context.Context, job domain.CampaignJob) error {
	var at attempt
	at.recipient = job.ContactEmail

	err := p.run(ctx, job, &at)
	if err == nil {
		return p.recordSent(ctx, job, at)
	}
	return p.recordFailed(ctx, job, at, err)
}

func (p *Pipeline) run(ctx context.Context, job domain.CampaignJob, at *attempt) error {
	campaign, err := p.store.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", job.CampaignID, err)
	}

	sender, err := p.resolveSender(ctx, job.SenderID)
	if err != nil {
		return err
	}
	at.sender = sender

	lead, err := p.store.GetLeadByID(ctx, job.LeadTable, job.LeadID)
	if errors.Is(err, sql.ErrNoRows) {
		return preparationErr(fmt.Errorf("%w: lead %d not in %s", ErrNoEligibleLead, job.LeadID, job.LeadTable))
	}
	if err != nil {
		return fmt.Errorf("load lead %d from %s: %w", job.LeadID, job.LeadTable, err)
	}
	if lead.ContactEmail != "" {
		at.recipient = lead.ContactEmail
	}

	if err := ValidateLead(&lead); err != nil {
		return validationErr(err)
	}

	prepared, err := p.Prepare(ctx, campaign, sender, lead)
	if err != nil {
		return err
	}
	at.subject = prepared.Subject
	at.preview = render.Preview(prepared.HTMLBody, previewMax)

	return p.send(ctx, sender, at.recipient, prepared)
}

// Prepare renders the subject, body, and letter of intent for one lead
// and generates the letterheaded PDF. Preflight uses the same path so a
// test send exercises exactly what a live job would.
func (p *Pipeline) Prepare(ctx context.Context, campaign domain.Campaign, sender domain.Sender, lead domain.Lead) (Prepared, error) {
	rctx := render.BuildContext(lead, sender, p.clock())

	subject, err := render.Render("subject", campaign.EmailSubjectTemplate, rctx)
	if err != nil {
		return Prepared{}, preparationErr(err)
	}
	body, err := render.Render("body", campaign.EmailBodyTemplate, rctx)
	if err != nil {
		return Prepared{}, preparationErr(err)
	}
	docHTML, err := render.Render("document", campaign.DocumentTemplate, rctx)
	if err != nil {
		return Prepared{}, preparationErr(err)
	}

	doc, err := p.compositor.Compose(ctx, docHTML)
	if err != nil {
		return Prepared{}, sendErr(fmt.Errorf("generate document: %w", err))
	}

	return Prepared{Subject: subject, HTMLBody: body, Document: doc}, nil
}

func (p *Pipeline) send(ctx context.Context, sender domain.Sender, recipient string, prepared Prepared) error {
	start := p.clock()
	_, err := p.mailer.Send(ctx, mail.OutboundEmail{
		FromName:  sender.Name,
		FromEmail: sender.Email,
		To:        recipient,
		Subject:   prepared.Subject,
		HTMLBody:  prepared.HTMLBody,
		Attachment: &mail.Attachment{
			Name:     attachmentName,
			MIMEType: "application/pdf",
			Content:  prepared.Document,
		},
		InlineLogo: p.logo,
	})
	p.metrics.SendCompleted(p.clock().Sub(start))

	if err != nil {
		if p.breaker != nil {
			p.breaker.RecordFailure(sender.Email)
		}
		return sendErr(err)
	}
	if p.breaker != nil {
		p.breaker.RecordSuccess(sender.Email)
	}
	return nil
}

// resolveSender prefers the mailbox assigned at enrollment, then falls
// back to the first active sender whose circuit is closed. Default
// senders sort first in the active list.
func (p *Pipeline) resolveSender(ctx context.Context, assigned uuid.UUID) (domain.Sender, error) {
	if assigned != uuid.Nil {
		sender, err := p.store.GetSenderByID(ctx, assigned)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// fall through to the active list
		case err != nil:
			return domain.Sender{}, fmt.Errorf("load sender %s: %w", assigned, err)
		case sender.IsActive && p.allow(sender.Email):
			return sender, nil
		}
	}

	senders, err := p.store.GetActiveSenders(ctx)
	if err != nil {
		return domain.Sender{}, fmt.Errorf("list active senders: %w", err)
	}
	for _, s := range senders {
		if p.allow(s.Email) {
			return s, nil
		}
	}
	return domain.Sender{}, preparationErr(ErrNoActiveSender)
}

func (p *Pipeline) allow(mailbox string) bool {
	if p.breaker == nil {
		return true
	}
	return !errors.Is(p.breaker.Allow(mailbox), circuitbreaker.ErrCircuitOpen)
}

func (p *Pipeline) recordSent(ctx context.Context, job domain.CampaignJob, at attempt) error {
	now := p.clock()

	task := domain.EmailTask{
		ID:             uuid.New(),
		JobID:          &job.ID,
		CampaignID:     job.CampaignID,
		SenderEmail:    at.sender.Email,
		Recipient:      at.recipient,
		Subject:        at.subject,
		BodyPreview:    at.preview,
		Status:         domain.TaskStatusSent,
		AttachmentName: attachmentName,
		CreatedAt:      now,
		SentAt:         &now,
	}
	if err := p.store.InsertEmailTask(ctx, task); err != nil {
		log.Printf("pipeline: job %s: record sent task: %v", job.ID, err)
	}

	if err := p.store.MarkJobSent(ctx, job.ID, now); err != nil {
		return fmt.Errorf("mark job %s sent: %w", job.ID, err)
	}

	p.metrics.PipelineOutcome(metrics.OutcomeSent)
	p.recordAnalytics(ctx, job.CampaignID, at.sender.Email, metrics.OutcomeSent, now)
	p.completeCampaign(ctx, job.CampaignID, now)
	return nil
}

func (p *Pipeline) recordFailed(ctx context.Context, job domain.CampaignJob, at attempt, cause error) error {
	now := p.clock()
	class := Classify(cause)
	log.Printf("pipeline: job %s failed (%s): %v", job.ID, class, cause)

	if class == FailureInfra {
		// Not a send-log entry: the environment failed, not the send.
		// Release the claim so the job does not sit in processing.
		if err := p.store.MarkJobFailed(ctx, job.ID, cause.Error(), now); err != nil {
			log.Printf("pipeline: job %s: mark failed after infra error: %v", job.ID, err)
		}
		p.metrics.PipelineOutcome(metrics.OutcomeInfraError)
		return cause
	}

	task := domain.EmailTask{
		ID:             uuid.New(),
		JobID:          &job.ID,
		CampaignID:     job.CampaignID,
		SenderEmail:    at.sender.Email,
		Recipient:      at.recipient,
		Subject:        at.subject,
		BodyPreview:    at.preview,
		Status:         taskStatus(class),
		ErrorMessage:   cause.Error(),
		AttachmentName: attachmentName,
		CreatedAt:      now,
	}
	if err := p.store.InsertEmailTask(ctx, task); err != nil {
		log.Printf("pipeline: job %s: record failed task: %v", job.ID, err)
	}

	if err := p.store.MarkJobFailed(ctx, job.ID, cause.Error(), now); err != nil {
		return fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}

	p.metrics.PipelineOutcome(outcomeFor(class))
	p.recordAnalytics(ctx, job.CampaignID, at.sender.Email, outcomeFor(class), now)
	p.completeCampaign(ctx, job.CampaignID, now)
	return cause
}

func (p *Pipeline) recordAnalytics(ctx context.Context, campaignID uuid.UUID, senderEmail, outcome string, now time.Time) {
	if p.analytics == nil {
		return
	}
	if err := p.analytics.RecordOutcome(ctx, campaignID, senderEmail, outcome, now); err != nil {
		log.Printf("pipeline: record analytics for campaign %s: %v", campaignID, err)
	}
}

func (p *Pipeline) completeCampaign(ctx context.Context, campaignID uuid.UUID, now time.Time) {
	if err := p.store.CompleteCampaignIfDone(ctx, campaignID, now); err != nil {
		log.Printf("pipeline: complete-if-done check for campaign %s: %v", campaignID, err)
	}
}

func taskStatus(class FailureClass) domain.TaskStatus {
	switch class {
	case FailurePreparation:
		return domain.TaskStatusFailedPreparation
	case FailureValidation:
		return domain.TaskStatusFailedValidation
	default:
		return domain.TaskStatusFailedToSend
	}
}

func outcomeFor(class FailureClass) string {
	switch class {
	case FailurePreparation:
		return metrics.OutcomeFailedPreparation
	case FailureValidation:
		return metrics.OutcomeFailedValidation
	default:
		return metrics.OutcomeFailedToSend
	}
}
