package domain

import (
	"time"

	"github.com/google/uuid"
)

type SenderStatus string

const (
	SenderStatusActive   SenderStatus = "active"
	SenderStatusInactive SenderStatus = "inactive"
)

// Sender is a mailbox identity the dispatcher impersonates.
type Sender struct {
	ID uuid.UUID

	Name  string
	Email string

	IsActive  bool
	IsDefault bool
	Status    SenderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}
