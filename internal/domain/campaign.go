package domain

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusStopping  CampaignStatus = "STOPPING"
	CampaignStatusStopped   CampaignStatus = "STOPPED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusArchived  CampaignStatus = "ARCHIVED"
)

// Campaign is a configured outreach effort targeting one market region.
type Campaign struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Name   string
	Status CampaignStatus

	MarketRegion string

	EmailSubjectTemplate string
	EmailBodyTemplate    string
	DocumentTemplate     string

	// DailySenderLimit caps how many jobs one sender mailbox is scheduled
	// for within a single send window.
	DailySenderLimit int
	TotalQuota       int

	// PacingInterval is the spacing between consecutive jobs at enrollment.
	PacingInterval time.Duration

	// SendWindowCron marks the opening of each sending day; jobs past the
	// daily cap roll forward to the next occurrence.
	SendWindowCron string
	Timezone       string

	CreatedAt time.Time
	UpdatedAt time.Time
}
