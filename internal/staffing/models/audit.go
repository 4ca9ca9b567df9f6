package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a mutating operation.
type AuditAction string

const (
	AuditCreate    AuditAction = "CREATE"
	AuditUpdate    AuditAction = "UPDATE"
	AuditRenew     AuditAction = "RENEW"
	AuditTerminate AuditAction = "TERMINATE"
	AuditDelete    AuditAction = "DELETE"
	AuditRequest   AuditAction = "REQUEST"
	AuditApprove   AuditAction = "APPROVE"
	AuditReject    AuditAction = "REJECT"
	AuditComplete  AuditAction = "COMPLETE"
	AuditCancel    AuditAction = "CANCEL"
)

const (
	EntityContract = "contract"
	EntityTransfer = "transfer"
)

// AuditEntry is an append-only record of one mutation.
type AuditEntry struct {
	ID       uuid.UUID
	FirmID   uuid.UUID
	ActorID  uuid.UUID
	Action   AuditAction
	Entity   string
	EntityID uuid.UUID
	// Metadata holds the action-specific payload, serialised as JSON.
	Metadata  map[string]any
	CreatedAt time.Time
}
