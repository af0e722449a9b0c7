// Package campaign drives campaign lifecycle: validation, activation with
// paced job enrollment, stop with pending-job cancellation, and live
// preflight sends.
package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/truesoulcoder/crm-admin-sub001/internal/cron"
	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/leads"
)

// DefaultPacingInterval spaces consecutive jobs when a campaign does not
// set its own pacing.
const DefaultPacingInterval = time.Minute

// defaultEnrollmentBatch bounds one activation's enrollment when the
// campaign carries no total quota.
const defaultEnrollmentBatch = 1000

var ErrNotStartable = errors.New("campaign cannot be started")

// Store is the persistence surface the controller needs.
type Store interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, from []domain.CampaignStatus, to domain.CampaignStatus, now time.Time) error
	GetActiveSenders(ctx context.Context) ([]domain.Sender, error)
	ListUnenrolledLeads(ctx context.Context, table string, campaignID uuid.UUID, limit int) ([]domain.Lead, error)
	InsertJobs(ctx context.Context, jobs []domain.CampaignJob) (int64, error)
	CancelPendingJobs(ctx context.Context, campaignID uuid.UUID) (int64, error)
	NextEligibleLead(ctx context.Context, table string) (domain.Lead, error)
}

// Preflighter sends one live test message for a campaign.
type Preflighter interface {
	Preflight(ctx context.Context, campaign domain.Campaign, lead domain.Lead, recipient string) (domain.EmailTask, error)
}

type Controller struct {
	store     Store
	tables    *leads.Resolver
	windows   *cron.Parser
	preflight Preflighter
	clock     func() time.Time
}

func NewController(store Store, tables *leads.Resolver, preflight Preflighter) *Controller {
	return &Controller{
		store:     store,
		tables:    tables,
		windows:   cron.NewParser(),
		preflight: preflight,
		clock:     time.Now,
	}
}

// Start validates the campaign, transitions it to ACTIVE, and enrolls
// unscheduled leads as paced pending jobs. Re-running Start on an active
// campaign only tops up enrollment; existing jobs are untouched.
func (c *Controller) Start(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	campaign, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	table, window, senders, err := c.validateStartable(ctx, campaign)
	if err != nil {
		return 0, err
	}

	now := c.clock()
	if campaign.Status != domain.CampaignStatusActive {
		from := []domain.CampaignStatus{
			domain.CampaignStatusDraft,
			domain.CampaignStatusPaused,
			domain.CampaignStatusStopped,
			domain.CampaignStatusCompleted,
		}
		if err := c.store.UpdateCampaignStatus(ctx, campaignID, from, domain.CampaignStatusActive, now); err != nil {
			return 0, err
		}
	}

	limit := campaign.TotalQuota
	if limit <= 0 {
		limit = defaultEnrollmentBatch
	}
	unenrolled, err := c.store.ListUnenrolledLeads(ctx, table, campaignID, limit)
	if err != nil {
		return 0, err
	}
	if len(unenrolled) == 0 {
		return 0, nil
	}

	jobs := scheduleJobs(campaign, unenrolled, senders, window, now)
	inserted, err := c.store.InsertJobs(ctx, jobs)
	if err != nil {
		return 0, err
	}
	log.Printf("campaign: %s enrolled %d jobs across %d senders", campaignID, inserted, len(senders))
	return inserted, nil
}

// Stop cancels a campaign's pending jobs and marks it STOPPED. Jobs
// already claimed finish their pipeline run normally.
func (c *Controller) Stop(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	now := c.clock()
	// STOPPING is accepted so a retry can finish a stop that failed
	// after the first transition.
	from := []domain.CampaignStatus{
		domain.CampaignStatusActive,
		domain.CampaignStatusPaused,
		domain.CampaignStatusStopping,
	}
	if err := c.store.UpdateCampaignStatus(ctx, campaignID, from, domain.CampaignStatusStopping, now); err != nil {
		return 0, err
	}

	canceled, err := c.store.CancelPendingJobs(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	stopping := []domain.CampaignStatus{domain.CampaignStatusStopping}
	if err := c.store.UpdateCampaignStatus(ctx, campaignID, stopping, domain.CampaignStatusStopped, c.clock()); err != nil {
		return canceled, err
	}
	log.Printf("campaign: %s stopped, %d pending jobs canceled", campaignID, canceled)
	return canceled, nil
}

// SendPreflight picks a live eligible lead from the campaign's region and
// sends the rendered message to the operator mailbox.
func (c *Controller) SendPreflight(ctx context.Context, campaignID uuid.UUID, recipient string) (domain.EmailTask, error) {
	campaign, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.EmailTask{}, err
	}

	table, err := c.tables.TableFor(campaign.MarketRegion)
	if err != nil {
		return domain.EmailTask{}, err
	}

	lead, err := c.store.NextEligibleLead(ctx, table)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmailTask{}, fmt.Errorf("%w: no eligible lead in %s", ErrNotStartable, table)
	}
	if err != nil {
		return domain.EmailTask{}, err
	}

	return c.preflight.Preflight(ctx, campaign, lead, recipient)
}

func (c *Controller) validateStartable(ctx context.Context, campaign domain.Campaign) (string, cron.Window, []domain.Sender, error) {
	var problems []string

	table, err := c.tables.TableFor(campaign.MarketRegion)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(campaign.EmailSubjectTemplate) == "" {
		problems = append(problems, "email subject template is empty")
	}
	if strings.TrimSpace(campaign.EmailBodyTemplate) == "" {
		problems = append(problems, "email body template is empty")
	}
	if strings.TrimSpace(campaign.DocumentTemplate) == "" {
		problems = append(problems, "document template is empty")
	}

	window, err := c.windows.Parse(campaign.SendWindowCron, campaign.Timezone)
	if err != nil {
		problems = append(problems, err.Error())
	}

	senders, err := c.store.GetActiveSenders(ctx)
	if err != nil {
		return "", nil, nil, err
	}
	if len(senders) == 0 {
		problems = append(problems, "no active senders configured")
	}

	if len(problems) > 0 {
		return "", nil, nil, fmt.Errorf("%w: %s", ErrNotStartable, strings.Join(problems, "; "))
	}
	return table, window, senders, nil
}

// scheduleJobs assigns leads to senders round-robin and paces them out.
// Once every sender hits the daily cap, remaining jobs roll forward to
// the next send-window opening.
func scheduleJobs(campaign domain.Campaign, unenrolled []domain.Lead, senders []domain.Sender, window cron.Window, now time.Time) []domain.CampaignJob {
	pacing := campaign.PacingInterval
	if pacing <= 0 {
		pacing = DefaultPacingInterval
	}

	dayCapacity := 0
	if campaign.DailySenderLimit > 0 {
		dayCapacity = campaign.DailySenderLimit * len(senders)
	}

	dayStart := now
	jobs := make([]domain.CampaignJob, 0, len(unenrolled))
	for i, lead := range unenrolled {
		slot := i
		if dayCapacity > 0 {
			day := i / dayCapacity
			slot = i % dayCapacity
			if slot == 0 && day > 0 {
				dayStart = window.Next(dayStart)
			}
		}

		jobs = append(jobs, domain.CampaignJob{
			ID:                 uuid.New(),
			CampaignID:         campaign.ID,
			LeadID:             lead.ID,
			LeadTable:          lead.SourceTable,
			SenderID:           senders[i%len(senders)].ID,
			ContactEmail:       lead.ContactEmail,
			Status:             domain.JobStatusPending,
			NextProcessingTime: dayStart.Add(time.Duration(slot) * pacing),
			CreatedAt:          now,
		})
	}
	return jobs
}
