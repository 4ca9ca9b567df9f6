package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus is the state of an inter-firm transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferApproved  TransferStatus = "APPROVED"
	TransferRejected  TransferStatus = "REJECTED"
	TransferCancelled TransferStatus = "CANCELLED"
	TransferCompleted TransferStatus = "COMPLETED"
)

// Valid reports whether s is a known transfer status.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferApproved, TransferRejected, TransferCancelled, TransferCompleted:
		return true
	}
	return false
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:  {TransferApproved, TransferRejected, TransferCancelled},
	TransferApproved: {TransferCompleted},
	TransferRejected: {TransferCancelled},
}

// CanTransition reports whether the workflow allows moving from s to next.
func (s TransferStatus) CanTransition(next TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s TransferStatus) Terminal() bool {
	return len(transferTransitions[s]) == 0
}

// TransferDirection filters transfers relative to a firm.
type TransferDirection string

const (
	DirectionAny TransferDirection = ""
	DirectionIn  TransferDirection = "in"
	DirectionOut TransferDirection = "out"
)

// Transfer is a request to move an employee to a sister firm of the same holding.
type Transfer struct {
	ID            uuid.UUID
	EmployeeID    uuid.UUID
	FromFirmID    uuid.UUID
	ToFirmID      uuid.UUID
	ClientID      *uuid.UUID
	TransferDate  time.Time
	EffectiveDate time.Time
	Reason        string
	Notes         string
	Status        TransferStatus

	RequestedBy     uuid.UUID
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	RejectedBy      *uuid.UUID
	RejectedAt      *time.Time
	RejectionReason string
	CompletedBy     *uuid.UUID
	CompletedAt     *time.Time
	CancelledAt     *time.Time

	// ContractSeed is a destination contract stored at approval and created at
	// completion, when it could not be created immediately.
	ContractSeed *ContractSeed

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContractSeed carries the terms of the contract to open in the destination firm.
type ContractSeed struct {
	Type           ContractType        `json:"type"`
	StartDate      time.Time           `json:"startDate"`
	EndDate        *time.Time          `json:"endDate,omitempty"`
	Position       string              `json:"position,omitempty"`
	Salary         decimal.NullDecimal `json:"salary"`
	WorkingHours   *float64            `json:"workingHours,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	AlertThreshold int                 `json:"alertThreshold,omitempty"`
}

// TransferUpdate lists the fields editable while a transfer is pending.
type TransferUpdate struct {
	TransferDate  *time.Time
	EffectiveDate *time.Time
	Reason        *string
	Notes         *string
	ClientID      *uuid.UUID
	ClearClient   bool
}

// TransferFilter selects transfers touching one firm.
type TransferFilter struct {
	FirmID    uuid.UUID
	Status    *TransferStatus
	Direction TransferDirection
}
