package campaign

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
	"github.com/truesoulcoder/crm-admin-sub001/internal/leads"
)

var testNow = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

type mockStore struct {
	campaign    domain.Campaign
	campaignErr error

	senders []domain.Sender

	unenrolled []domain.Lead
	listErr    error

	inserted []domain.CampaignJob

	transitions []domain.CampaignStatus
	froms       [][]domain.CampaignStatus
	canceled    int64

	nextLead    domain.Lead
	nextLeadErr error
}

func (m *mockStore) GetCampaign(_ context.Context, _ uuid.UUID) (domain.Campaign, error) {
	return m.campaign, m.campaignErr
}

func (m *mockStore) UpdateCampaignStatus(_ context.Context, _ uuid.UUID, from []domain.CampaignStatus, to domain.CampaignStatus, _ time.Time) error {
	m.transitions = append(m.transitions, to)
	m.froms = append(m.froms, from)
	return nil
}

func (m *mockStore) GetActiveSenders(_ context.Context) ([]domain.Sender, error) {
	return m.senders, nil
}

func (m *mockStore) ListUnenrolledLeads(_ context.Context, _ string, _ uuid.UUID, limit int) ([]domain.Lead, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit < len(m.unenrolled) {
		return m.unenrolled[:limit], nil
	}
	return m.unenrolled, nil
}

func (m *mockStore) InsertJobs(_ context.Context, jobs []domain.CampaignJob) (int64, error) {
	m.inserted = append(m.inserted, jobs...)
	return int64(len(jobs)), nil
}

func (m *mockStore) CancelPendingJobs(_ context.Context, _ uuid.UUID) (int64, error) {
	return m.canceled, nil
}

func (m *mockStore) NextEligibleLead(_ context.Context, _ string) (domain.Lead, error) {
	return m.nextLead, m.nextLeadErr
}

type mockPreflighter struct {
	task domain.EmailTask
	err  error

	campaign  domain.Campaign
	lead      domain.Lead
	recipient string
	calls     int
}

func (m *mockPreflighter) Preflight(_ context.Context, campaign domain.Campaign, lead domain.Lead, recipient string) (domain.EmailTask, error) {
	m.calls++
	m.campaign = campaign
	m.lead = lead
	m.recipient = recipient
	return m.task, m.err
}

func testLeads(n int) []domain.Lead {
	out := make([]domain.Lead, n)
	for i := range out {
		out[i] = domain.Lead{
			ID:           int64(i + 1),
			SourceTable:  "houston_fresh_leads",
			ContactName:  "Owner",
			ContactEmail: "owner@example.com",
		}
	}
	return out
}

func newTestController(store *mockStore, pf Preflighter) *Controller {
	resolver, err := leads.NewResolver([]string{"houston", "dallas"})
	if err != nil {
		panic(err)
	}
	c := NewController(store, resolver, pf)
	c.clock = func() time.Time { return testNow }
	return c
}

func newStartableStore() *mockStore {
	return &mockStore{
		campaign: domain.Campaign{
			ID:                   uuid.New(),
			Status:               domain.CampaignStatusDraft,
			MarketRegion:         "houston",
			EmailSubjectTemplate: "Offer for {{.PropertyAddress}}",
			EmailBodyTemplate:    "<p>{{.OfferPrice}}</p>",
			DocumentTemplate:     "<html>{{.OfferPrice}}</html>",
			PacingInterval:       30 * time.Second,
			SendWindowCron:       "0 9 * * *",
			Timezone:             "UTC",
		},
		senders: []domain.Sender{
			{ID: uuid.New(), Email: "a@truesoul.test", IsActive: true},
			{ID: uuid.New(), Email: "b@truesoul.test", IsActive: true},
		},
	}
}

func TestStartEnrollsPacedJobs(t *testing.T) {
	store := newStartableStore()
	store.unenrolled = testLeads(4)
	c := newTestController(store, &mockPreflighter{})

	n, err := c.Start(context.Background(), store.campaign.ID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("enrolled %d jobs, want 4", n)
	}
	if len(store.transitions) != 1 || store.transitions[0] != domain.CampaignStatusActive {
		t.Errorf("transitions = %v, want [ACTIVE]", store.transitions)
	}

	for i, job := range store.inserted {
		if job.Status != domain.JobStatusPending {
			t.Errorf("job %d status = %s, want pending", i, job.Status)
		}
		want := testNow.Add(time.Duration(i) * 30 * time.Second)
		if !job.NextProcessingTime.Equal(want) {
			t.Errorf("job %d scheduled at %v, want %v", i, job.NextProcessingTime, want)
		}
	}

	// round-robin across the two senders
	if store.inserted[0].SenderID != store.senders[0].ID || store.inserted[1].SenderID != store.senders[1].ID {
		t.Error("jobs not assigned round-robin")
	}
	if store.inserted[2].SenderID != store.senders[0].ID {
		t.Error("round-robin did not wrap")
	}
}

func TestStartRollsPastDailyCapIntoNextWindow(t *testing.T) {
	store := newStartableStore()
	store.campaign.DailySenderLimit = 1 // capacity 2/day with 2 senders
	store.unenrolled = testLeads(5)
	c := newTestController(store, &mockPreflighter{})

	if _, err := c.Start(context.Background(), store.campaign.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	day2 := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC)

	if got := store.inserted[2].NextProcessingTime; !got.Equal(day2) {
		t.Errorf("job 2 scheduled at %v, want next window %v", got, day2)
	}
	if got := store.inserted[3].NextProcessingTime; !got.Equal(day2.Add(30 * time.Second)) {
		t.Errorf("job 3 scheduled at %v, want paced within window", got)
	}
	if got := store.inserted[4].NextProcessingTime; !got.Equal(day3) {
		t.Errorf("job 4 scheduled at %v, want %v", got, day3)
	}
}

func TestStartHonorsTotalQuota(t *testing.T) {
	store := newStartableStore()
	store.campaign.TotalQuota = 2
	store.unenrolled = testLeads(10)
	c := newTestController(store, &mockPreflighter{})

	n, err := c.Start(context.Background(), store.campaign.ID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n != 2 {
		t.Errorf("enrolled %d jobs, want quota-bounded 2", n)
	}
}

func TestStartRejectsIncompleteCampaign(t *testing.T) {
	store := newStartableStore()
	store.campaign.MarketRegion = "atlantis"
	store.campaign.EmailBodyTemplate = ""
	store.senders = nil
	c := newTestController(store, &mockPreflighter{})

	_, err := c.Start(context.Background(), store.campaign.ID)
	if !errors.Is(err, ErrNotStartable) {
		t.Fatalf("Start() error = %v, want ErrNotStartable", err)
	}
	for _, want := range []string{"atlantis", "body template", "no active senders"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
	if len(store.transitions) != 0 {
		t.Error("invalid campaign was transitioned")
	}
	if len(store.inserted) != 0 {
		t.Error("invalid campaign enrolled jobs")
	}
}

func TestStopCancelsPending(t *testing.T) {
	store := newStartableStore()
	store.campaign.Status = domain.CampaignStatusActive
	store.canceled = 7
	c := newTestController(store, &mockPreflighter{})

	n, err := c.Stop(context.Background(), store.campaign.ID)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n != 7 {
		t.Errorf("canceled %d, want 7", n)
	}
	want := []domain.CampaignStatus{domain.CampaignStatusStopping, domain.CampaignStatusStopped}
	if len(store.transitions) != 2 || store.transitions[0] != want[0] || store.transitions[1] != want[1] {
		t.Errorf("transitions = %v, want %v", store.transitions, want)
	}
}

func TestStopRetryFinishesStrandedCampaign(t *testing.T) {
	store := newStartableStore()
	store.campaign.Status = domain.CampaignStatusStopping
	c := newTestController(store, &mockPreflighter{})

	if _, err := c.Stop(context.Background(), store.campaign.ID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(store.froms) == 0 {
		t.Fatal("no status transitions attempted")
	}
	var accepted bool
	for _, s := range store.froms[0] {
		if s == domain.CampaignStatusStopping {
			accepted = true
		}
	}
	if !accepted {
		t.Errorf("Stop does not accept a STOPPING campaign, from = %v", store.froms[0])
	}
	if n := len(store.transitions); n == 0 || store.transitions[n-1] != domain.CampaignStatusStopped {
		t.Errorf("transitions = %v, want final STOPPED", store.transitions)
	}
}

func TestSendPreflightUsesLiveLead(t *testing.T) {
	store := newStartableStore()
	store.nextLead = domain.Lead{ID: 9, SourceTable: "houston_fresh_leads", ContactEmail: "live@example.com"}
	pf := &mockPreflighter{task: domain.EmailTask{Status: domain.TaskStatusSent}}
	c := newTestController(store, pf)

	task, err := c.SendPreflight(context.Background(), store.campaign.ID, "operator@truesoul.test")
	if err != nil {
		t.Fatalf("SendPreflight() error = %v", err)
	}
	if task.Status != domain.TaskStatusSent {
		t.Errorf("task status = %s", task.Status)
	}
	if pf.calls != 1 || pf.lead.ID != 9 || pf.recipient != "operator@truesoul.test" {
		t.Errorf("preflighter called with lead %d recipient %q", pf.lead.ID, pf.recipient)
	}
}

func TestSendPreflightNoEligibleLead(t *testing.T) {
	store := newStartableStore()
	store.nextLeadErr = sql.ErrNoRows
	c := newTestController(store, &mockPreflighter{})

	_, err := c.SendPreflight(context.Background(), store.campaign.ID, "operator@truesoul.test")
	if !errors.Is(err, ErrNotStartable) {
		t.Fatalf("SendPreflight() error = %v, want ErrNotStartable", err)
	}
}
