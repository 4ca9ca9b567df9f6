package models

import (
	"time"

	"github.com/google/uuid"
)

// Firm is a tenant organization. Firms sharing a holding may exchange employees.
type Firm struct {
	ID        uuid.UUID
	Name      string
	HoldingID *uuid.UUID
}

// SameHolding reports whether both firms belong to one holding.
func (f *Firm) SameHolding(other *Firm) bool {
	if f.HoldingID == nil || other.HoldingID == nil {
		return false
	}
	return *f.HoldingID == *other.HoldingID
}

// Client is a customer of a firm employees can be placed with.
type Client struct {
	ID     uuid.UUID
	FirmID uuid.UUID
	Name   string
}

// Employee belongs to exactly one firm at a time.
type Employee struct {
	ID               uuid.UUID
	FirmID           uuid.UUID
	AssignedClientID *uuid.UUID
	FirstName        string
	LastName         string
	UpdatedAt        time.Time
}

// Role is a membership privilege level.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
	RoleViewer  Role = "VIEWER"
)

var roleRank = map[Role]int{
	RoleOwner:   5,
	RoleAdmin:   4,
	RoleManager: 3,
	RoleStaff:   2,
	RoleViewer:  1,
}

// Rank orders roles by privilege; unknown roles rank zero.
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether r carries at least the privilege of floor.
func (r Role) AtLeast(floor Role) bool {
	return r.Rank() > 0 && r.Rank() >= floor.Rank()
}

// Membership associates a user with a firm.
type Membership struct {
	UserID uuid.UUID
	FirmID uuid.UUID
	Role   Role
}

// Roles lists every role from most to least privileged.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleManager, RoleStaff, RoleViewer}
}
