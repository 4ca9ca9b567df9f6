// Package models defines the core domain models of the staffing back office:
// firms, employees, labor contracts, inter-firm transfers and audit entries.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractType is the statutory kind of a labor contract.
type ContractType string

const (
	// ContractCDI is an indefinite contract.
	ContractCDI ContractType = "CDI"
	// ContractCDD is a fixed-term contract.
	ContractCDD        ContractType = "CDD"
	ContractInterim    ContractType = "INTERIM"
	ContractStage      ContractType = "STAGE"
	ContractPrestation ContractType = "PRESTATION"
)

// Valid reports whether t is a known contract type.
func (t ContractType) Valid() bool {
	switch t {
	case ContractCDI, ContractCDD, ContractInterim, ContractStage, ContractPrestation:
		return true
	}
	return false
}

// RequiresEndDate reports whether contracts of this type must carry an end date.
func (t ContractType) RequiresEndDate() bool {
	return t != ContractCDI
}

// FixedTerm reports whether the type counts toward the cumulative duration cap.
func (t ContractType) FixedTerm() bool {
	switch t {
	case ContractCDD, ContractInterim, ContractPrestation:
		return true
	}
	return false
}

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	ContractActive     ContractStatus = "ACTIVE"
	ContractRenewed    ContractStatus = "RENEWED"
	ContractTerminated ContractStatus = "TERMINATED"
	ContractExpired    ContractStatus = "EXPIRED"
)

// Valid reports whether s is a known contract status.
func (s ContractStatus) Valid() bool {
	switch s {
	case ContractActive, ContractRenewed, ContractTerminated, ContractExpired:
		return true
	}
	return false
}

// DefaultAlertThreshold is the number of days before expiry a contract is
// flagged when no threshold is configured.
const DefaultAlertThreshold = 30

// Contract defines the domain model for a labor contract between a firm and
// one of its employees.
type Contract struct {
	ID         uuid.UUID
	FirmID     uuid.UUID
	EmployeeID uuid.UUID
	// ClientID is the client the employee is placed with, if any.
	ClientID  *uuid.UUID
	Type      ContractType
	Status    ContractStatus
	StartDate time.Time
	// EndDate is nil only for open-ended contracts.
	EndDate      *time.Time
	Position     string
	Salary       decimal.NullDecimal
	WorkingHours *float64
	Notes        string
	// RenewedFromID points at the predecessor this contract superseded.
	RenewedFromID     *uuid.UUID
	IsActive          bool
	AlertThreshold    int
	TerminationDate   *time.Time
	TerminationReason string
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsExpired reports whether an ACTIVE contract has run past its end date.
// Expiry is derived on read and never written back.
func (c *Contract) IsExpired(now time.Time) bool {
	if c.Status != ContractActive || c.EndDate == nil {
		return false
	}
	return c.EndDate.Before(Date(now))
}

// DaysUntilExpiry returns the whole days left before the end date, or nil for
// open-ended contracts.
func (c *Contract) DaysUntilExpiry(now time.Time) *int {
	if c.EndDate == nil {
		return nil
	}
	days := int(c.EndDate.Sub(Date(now)).Hours() / 24)
	return &days
}

// ExpiresSoon reports whether an ACTIVE contract ends within its alert threshold.
func (c *Contract) ExpiresSoon(now time.Time) bool {
	if c.Status != ContractActive || c.EndDate == nil || c.IsExpired(now) {
		return false
	}
	days := c.DaysUntilExpiry(now)
	return *days <= c.AlertThreshold
}

// ContractUpdate represents the fields that can be patched on a contract.
// Pointer types are used to allow partial updates; status is never patchable.
type ContractUpdate struct {
	Type           *ContractType
	StartDate      *time.Time
	EndDate        *time.Time
	ClearEndDate   bool
	Position       *string
	Salary         *decimal.Decimal
	WorkingHours   *float64
	Notes          *string
	AlertThreshold *int
}

// ContractFilter selects a page of contracts within one firm.
type ContractFilter struct {
	FirmID     uuid.UUID
	Status     *ContractStatus
	Type       *ContractType
	EmployeeID *uuid.UUID
	SortBy     string
	SortDesc   bool
	Page       int
	Limit      int
}

// ContractPage is one page of a contract listing.
type ContractPage struct {
	Contracts  []*Contract
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DatePtr truncates a nullable time to a UTC calendar date.
func DatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Date(*t)
	return &d
}
