// Package models contains the database records of the staffing service,
// configured to work using GORM as the ORM.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Firm is a tenant organization row.
type Firm struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name      string     `gorm:"size:255;not null"`
	HoldingID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a customer of a firm.
type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FirmID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"size:255;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Employee belongs to exactly one firm. FirmID only changes on a completed transfer.
type Employee struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	FirmID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	AssignedClientID *uuid.UUID `gorm:"type:uuid"`
	FirstName        string     `gorm:"size:100"`
	LastName         string     `gorm:"size:100"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserFirm is a user's membership in a firm.
type UserFirm struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	FirmID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role      string    `gorm:"size:20;not null"`
	CreatedAt time.Time
}

// Contract is a labor contract row. The partial unique index keeps a single
// ACTIVE contract per employee even when two writers race.
type Contract struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey"`
	FirmID            uuid.UUID           `gorm:"type:uuid;not null;index:idx_contracts_firm_status,priority:1"`
	EmployeeID        uuid.UUID           `gorm:"type:uuid;not null;index;uniqueIndex:idx_contracts_one_active,where:status = 'ACTIVE'"`
	ClientID          *uuid.UUID          `gorm:"type:uuid"`
	Type              string              `gorm:"size:20;not null"`
	Status            string              `gorm:"size:20;not null;index:idx_contracts_firm_status,priority:2"`
	StartDate         time.Time           `gorm:"type:date;not null"`
	EndDate           *time.Time          `gorm:"type:date"`
	Position          string              `gorm:"size:255"`
	Salary            decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	WorkingHours      *float64
	Notes             string     `gorm:"type:text"`
	RenewedFromID     *uuid.UUID `gorm:"type:uuid;index"`
	IsActive          bool       `gorm:"not null"`
	AlertThreshold    int        `gorm:"not null;check:alert_threshold >= 0"`
	TerminationDate   *time.Time `gorm:"type:date"`
	TerminationReason string     `gorm:"type:text"`
	CreatedBy         uuid.UUID  `gorm:"type:uuid"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EmployeeTransfer is an inter-firm transfer row. At most one PENDING row per employee.
type EmployeeTransfer struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EmployeeID      uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_transfers_one_pending,where:status = 'PENDING'"`
	FromFirmID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ToFirmID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	ClientID        *uuid.UUID `gorm:"type:uuid"`
	TransferDate    time.Time  `gorm:"type:date;not null"`
	EffectiveDate   time.Time  `gorm:"type:date;not null"`
	Reason          string     `gorm:"type:text"`
	Notes           string     `gorm:"type:text"`
	Status          string     `gorm:"size:20;not null;index"`
	RequestedBy     uuid.UUID  `gorm:"type:uuid;not null"`
	ApprovedBy      *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectedBy      *uuid.UUID `gorm:"type:uuid"`
	RejectedAt      *time.Time
	RejectionReason string     `gorm:"type:text"`
	CompletedBy     *uuid.UUID `gorm:"type:uuid"`
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	ContractSeed    datatypes.JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AuditLog is an append-only mutation record.
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	FirmID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	ActorID   uuid.UUID      `gorm:"type:uuid;not null"`
	Action    string         `gorm:"size:50;not null"`
	Entity    string         `gorm:"size:50;not null"`
	EntityID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	Metadata  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

// All lists every record for AutoMigrate.
func All() []any {
	return []any{
		&Firm{},
		&Client{},
		&Employee{},
		&UserFirm{},
		&Contract{},
		&EmployeeTransfer{},
		&AuditLog{},
	}
}
