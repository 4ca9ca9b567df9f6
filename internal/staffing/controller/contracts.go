package controller

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/staffing/db"
	"github.com/gartstein/staffing/internal/staffing/eligibility"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/events"
	"github.com/gartstein/staffing/internal/staffing/features"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Role floors of the contract operations.
const (
	contractReadRole      = models.RoleViewer
	contractWriteRole     = models.RoleManager
	contractTerminateRole = models.RoleAdmin
	contractDeleteRole    = models.RoleOwner
)

// ContractInput holds the terms of a new contract.
type ContractInput struct {
	EmployeeID     uuid.UUID
	ClientID       *uuid.UUID
	Type           models.ContractType
	StartDate      time.Time
	EndDate        *time.Time
	Position       string
	Salary         decimal.NullDecimal
	WorkingHours   *float64
	Notes          string
	AlertThreshold *int
}

// RenewInput holds the proposed period of a renewal and the terms to
// override. Nil fields are inherited from the predecessor.
type RenewInput struct {
	StartDate      time.Time
	EndDate        *time.Time
	Position       *string
	Salary         *decimal.Decimal
	WorkingHours   *float64
	Notes          *string
	AlertThreshold *int
}

// RenewResult reports both sides of a renewal.
type RenewResult struct {
	Previous    *models.Contract
	Contract    *models.Contract
	Eligibility eligibility.Result
}

// ContractService provides the contract lifecycle operations.
type ContractService struct {
	service
}

// NewContractService constructs a ContractService with a repository, an
// access guard, an event producer and a logger.
func NewContractService(repo Repository, guard Guard, producer EventProducer, logger *zap.Logger, opts ...Option) *ContractService {
	return &ContractService{service: newService(repo, guard, producer, logger.Named("contract_service"), opts)}
}

// Now exposes the service clock so callers derive expiry consistently.
func (s *ContractService) Now() time.Time {
	return s.clock.Now()
}

// CreateContract opens a new ACTIVE contract for an employee of firmID.
func (s *ContractService) CreateContract(ctx context.Context, actor, firmID uuid.UUID, in ContractInput) (*models.Contract, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractWriteRole); err != nil {
		return nil, err
	}
	if in.EmployeeID == uuid.Nil {
		return nil, e.Invalid(e.ReasonMissingField, "employeeId is required")
	}
	threshold := s.defaultAlertThreshold
	if in.AlertThreshold != nil {
		threshold = *in.AlertThreshold
	}
	c := &models.Contract{
		FirmID:         firmID,
		EmployeeID:     in.EmployeeID,
		ClientID:       in.ClientID,
		Type:           in.Type,
		Status:         models.ContractActive,
		StartDate:      models.Date(in.StartDate),
		EndDate:        models.DatePtr(in.EndDate),
		Position:       strings.TrimSpace(in.Position),
		Salary:         in.Salary,
		WorkingHours:   in.WorkingHours,
		Notes:          in.Notes,
		IsActive:       true,
		AlertThreshold: threshold,
		CreatedBy:      actor,
	}
	if in.StartDate.IsZero() {
		return nil, e.Invalid(e.ReasonMissingField, "startDate is required")
	}
	if err := validateTerms(c); err != nil {
		return nil, err
	}

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		emp, err := s.repo.LockEmployee(ctx, in.EmployeeID)
		if err != nil {
			return err
		}
		if emp.FirmID != firmID {
			return e.ErrNotFound
		}
		if err := s.checkClient(ctx, firmID, c.ClientID); err != nil {
			return err
		}
		if err := s.ensureNoActiveContract(ctx, emp.ID); err != nil {
			return err
		}
		if err := s.repo.InsertContract(ctx, c); err != nil {
			return err
		}
		return s.audit(ctx, firmID, actor, models.AuditCreate, models.EntityContract, c.ID, map[string]any{
			"contract": contractSnapshot(c),
		})
	})
	if err != nil {
		return nil, s.fail("create contract", err)
	}

	s.publish(contractEvent(events.ContractCreated, actor, c))
	return c, nil
}

// GetContract returns a contract of firmID.
func (s *ContractService) GetContract(ctx context.Context, actor, firmID, id uuid.UUID) (*models.Contract, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractReadRole); err != nil {
		return nil, err
	}
	c, err := s.findContract(ctx, firmID, id)
	if err != nil {
		return nil, s.fail("get contract", err)
	}
	return c, nil
}

// ListContracts returns one page of firmID's contracts. Zero page and limit
// take their defaults; the limit is capped at MaxPageLimit.
func (s *ContractService) ListContracts(ctx context.Context, actor uuid.UUID, f models.ContractFilter) (*models.ContractPage, error) {
	if _, err := s.access(ctx, actor, f.FirmID, features.ModuleContracts, contractReadRole); err != nil {
		return nil, err
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, e.Invalid(e.ReasonInvalidField, fmt.Sprintf("unknown status %q", *f.Status))
	}
	if f.Type != nil && !f.Type.Valid() {
		return nil, e.Invalid(e.ReasonInvalidContractType, fmt.Sprintf("unknown contract type %q", *f.Type))
	}
	if f.SortBy == "" {
		f.SortBy = "createdAt"
	}
	if !db.SortableContractColumn(f.SortBy) {
		return nil, e.Invalid(e.ReasonInvalidField, fmt.Sprintf("cannot sort by %q", f.SortBy))
	}
	if f.Page < 0 || f.Limit < 0 {
		return nil, e.Invalid(e.ReasonInvalidField, "page and limit must be positive")
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Page-1 > math.MaxInt32/f.Limit {
		return nil, e.Invalid(e.ReasonInvalidField, fmt.Sprintf("page %d is out of range", f.Page))
	}

	contracts, total, err := s.repo.ListContracts(ctx, f)
	if err != nil {
		return nil, s.fail("list contracts", err)
	}
	return &models.ContractPage{
		Contracts:  contracts,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}, nil
}

// ListEmployeeContracts returns the contract history an employee has with
// firmID, oldest first.
func (s *ContractService) ListEmployeeContracts(ctx context.Context, actor, firmID, employeeID uuid.UUID) ([]*models.Contract, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractReadRole); err != nil {
		return nil, err
	}
	emp, err := s.repo.FindEmployee(ctx, employeeID)
	if err != nil {
		return nil, s.fail("list employee contracts", err)
	}
	history, err := s.repo.FindContractsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, s.fail("list employee contracts", err)
	}

	out := make([]*models.Contract, 0, len(history))
	for _, c := range history {
		if c.FirmID == firmID {
			out = append(out, c)
		}
	}
	// A former employee stays visible through the contracts the firm holds.
	if emp.FirmID != firmID && len(out) == 0 {
		return nil, e.ErrNotFound
	}
	return out, nil
}

// UpdateContract patches the editable terms of a contract. Status never changes here.
func (s *ContractService) UpdateContract(ctx context.Context, actor, firmID, id uuid.UUID, patch models.ContractUpdate) (*models.Contract, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractWriteRole); err != nil {
		return nil, err
	}

	var updated *models.Contract
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockContract(ctx, firmID, id)
		if err != nil {
			return err
		}
		before := contractSnapshot(c)

		applyContractUpdate(c, patch)
		if err := validateTerms(c); err != nil {
			return err
		}
		if err := s.repo.UpdateContract(ctx, c); err != nil {
			return err
		}
		updated = c
		return s.audit(ctx, firmID, actor, models.AuditUpdate, models.EntityContract, c.ID, map[string]any{
			"before": before,
			"after":  contractSnapshot(c),
		})
	})
	if err != nil {
		return nil, s.fail("update contract", err)
	}

	s.publish(contractEvent(events.ContractUpdated, actor, updated))
	return updated, nil
}

// CheckRenewal previews the eligibility of a renewal without writing.
func (s *ContractService) CheckRenewal(ctx context.Context, actor, firmID, id uuid.UUID, start time.Time, end *time.Time) (eligibility.Result, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractReadRole); err != nil {
		return eligibility.Result{}, err
	}
	c, err := s.findContract(ctx, firmID, id)
	if err != nil {
		return eligibility.Result{}, s.fail("check renewal", err)
	}
	if err := validateRenewalPeriod(c.Type, start, end); err != nil {
		return eligibility.Result{}, err
	}
	history, err := s.repo.FindContractsByEmployee(ctx, c.EmployeeID)
	if err != nil {
		return eligibility.Result{}, s.fail("check renewal", err)
	}
	return eligibility.Evaluate(c, models.Date(start), models.DatePtr(end), history, s.clock.Now()), nil
}

// RenewContract supersedes an ACTIVE contract with a new one. The old
// contract becomes RENEWED and the successor points back at it; both writes
// and the audit entry commit together.
func (s *ContractService) RenewContract(ctx context.Context, actor, firmID, id uuid.UUID, in RenewInput) (*RenewResult, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractWriteRole); err != nil {
		return nil, err
	}

	var res RenewResult
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		old, err := s.lockContract(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := validateRenewalPeriod(old.Type, in.StartDate, in.EndDate); err != nil {
			return err
		}
		if old.Status == models.ContractRenewed {
			return e.Violation(e.ReasonIllegalTransition, "the contract has already been renewed", map[string]string{
				"status": string(old.Status),
			})
		}

		history, err := s.repo.FindContractsByEmployee(ctx, old.EmployeeID)
		if err != nil {
			return err
		}
		res.Eligibility = eligibility.Evaluate(old, models.Date(in.StartDate), models.DatePtr(in.EndDate), history, s.clock.Now())
		if err := res.Eligibility.Err(); err != nil {
			return err
		}

		next := renewedContract(old, in, actor)
		if err := validateTerms(next); err != nil {
			return err
		}

		old.Status = models.ContractRenewed
		old.IsActive = false
		if err := s.repo.UpdateContract(ctx, old); err != nil {
			return err
		}
		if err := s.repo.InsertContract(ctx, next); err != nil {
			return err
		}
		res.Previous, res.Contract = old, next

		return s.audit(ctx, firmID, actor, models.AuditRenew, models.EntityContract, next.ID, map[string]any{
			"previousContractId": old.ID.String(),
			"newContractId":      next.ID.String(),
			"contract":           contractSnapshot(next),
			"eligibility":        res.Eligibility.Details(),
		})
	})
	if err != nil {
		return nil, s.fail("renew contract", err)
	}

	s.publish(contractEvent(events.ContractRenewed, actor, res.Contract))
	return &res, nil
}

// TerminateContract ends an ACTIVE contract today. Termination is final.
func (s *ContractService) TerminateContract(ctx context.Context, actor, firmID, id uuid.UUID, reason string) (*models.Contract, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractTerminateRole); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, e.Invalid(e.ReasonMissingField, "a termination reason is required")
	}

	var terminated *models.Contract
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockContract(ctx, firmID, id)
		if err != nil {
			return err
		}
		if c.Status != models.ContractActive {
			return e.Violation(e.ReasonIllegalTransition, fmt.Sprintf("a %s contract cannot be terminated", c.Status), map[string]string{
				"status": string(c.Status),
			})
		}
		terminate(c, s.today(), reason)
		if err := s.repo.UpdateContract(ctx, c); err != nil {
			return err
		}
		terminated = c
		return s.audit(ctx, firmID, actor, models.AuditTerminate, models.EntityContract, c.ID, map[string]any{
			"reason":          reason,
			"terminationDate": formatDatePtr(c.TerminationDate),
		})
	})
	if err != nil {
		return nil, s.fail("terminate contract", err)
	}

	s.publish(contractEvent(events.ContractTerminated, actor, terminated))
	return terminated, nil
}

// DeleteContract removes a contract for good. The audit entry keeps the full
// prior record.
func (s *ContractService) DeleteContract(ctx context.Context, actor, firmID, id uuid.UUID) error {
	if _, err := s.access(ctx, actor, firmID, features.ModuleContracts, contractDeleteRole); err != nil {
		return err
	}

	var deleted *models.Contract
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockContract(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteContract(ctx, c.ID); err != nil {
			return err
		}
		deleted = c
		return s.audit(ctx, firmID, actor, models.AuditDelete, models.EntityContract, c.ID, map[string]any{
			"contract": contractSnapshot(c),
		})
	})
	if err != nil {
		return s.fail("delete contract", err)
	}

	s.publish(contractEvent(events.ContractDeleted, actor, deleted))
	return nil
}

// findContract loads a contract and hides it when it belongs to another firm.
func (s *service) findContract(ctx context.Context, firmID, id uuid.UUID) (*models.Contract, error) {
	c, err := s.repo.FindContractByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.FirmID != firmID {
		return nil, e.ErrNotFound
	}
	return c, nil
}

// lockContract locks the contract's employee, then reads the contract again
// so the caller acts on the committed state.
func (s *service) lockContract(ctx context.Context, firmID, id uuid.UUID) (*models.Contract, error) {
	c, err := s.findContract(ctx, firmID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.LockEmployee(ctx, c.EmployeeID); err != nil {
		return nil, err
	}
	return s.findContract(ctx, firmID, id)
}

func (s *service) ensureNoActiveContract(ctx context.Context, employeeID uuid.UUID) error {
	active, err := s.repo.FindActiveContractsByEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	current, err := singleActive(employeeID, active)
	if err != nil {
		return err
	}
	if current != nil {
		return e.Violation(e.ReasonActiveContractExists, "the employee already has an active contract", map[string]string{
			"activeContractId": current.ID.String(),
		})
	}
	return nil
}

func (s *service) checkClient(ctx context.Context, firmID uuid.UUID, clientID *uuid.UUID) error {
	if clientID == nil {
		return nil
	}
	client, err := s.repo.FindClient(ctx, *clientID)
	if err != nil && !isNotFound(err) {
		return err
	}
	if client == nil || client.FirmID != firmID {
		return e.Invalid(e.ReasonClientNotInFirm, "the client does not belong to the firm")
	}
	return nil
}

// validateTerms checks the invariants every stored contract satisfies.
func validateTerms(c *models.Contract) error {
	if !c.Type.Valid() {
		return e.Invalid(e.ReasonInvalidContractType, fmt.Sprintf("unknown contract type %q", c.Type))
	}
	if c.Type.RequiresEndDate() && c.EndDate == nil {
		return e.Invalid(e.ReasonEndDateRequired, fmt.Sprintf("an end date is required for %s contracts", c.Type))
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return e.Invalid(e.ReasonInvalidDateRange, "endDate must not be before startDate")
	}
	if c.AlertThreshold < 0 {
		return e.Invalid(e.ReasonInvalidField, "alertThreshold must not be negative")
	}
	if c.Salary.Valid && c.Salary.Decimal.IsNegative() {
		return e.Invalid(e.ReasonInvalidField, "salary must not be negative")
	}
	if c.WorkingHours != nil && *c.WorkingHours < 0 {
		return e.Invalid(e.ReasonInvalidField, "workingHours must not be negative")
	}
	return nil
}

func validateRenewalPeriod(t models.ContractType, start time.Time, end *time.Time) error {
	if start.IsZero() {
		return e.Invalid(e.ReasonMissingField, "startDate is required")
	}
	if t.RequiresEndDate() && end == nil {
		return e.Invalid(e.ReasonEndDateRequired, fmt.Sprintf("an end date is required for %s contracts", t))
	}
	if end != nil && models.Date(*end).Before(models.Date(start)) {
		return e.Invalid(e.ReasonInvalidDateRange, "endDate must not be before startDate")
	}
	return nil
}

func applyContractUpdate(c *models.Contract, patch models.ContractUpdate) {
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.StartDate != nil {
		c.StartDate = models.Date(*patch.StartDate)
	}
	if patch.ClearEndDate {
		c.EndDate = nil
	} else if patch.EndDate != nil {
		c.EndDate = models.DatePtr(patch.EndDate)
	}
	if patch.Position != nil {
		c.Position = strings.TrimSpace(*patch.Position)
	}
	if patch.Salary != nil {
		c.Salary = decimal.NewNullDecimal(*patch.Salary)
	}
	if patch.WorkingHours != nil {
		c.WorkingHours = patch.WorkingHours
	}
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}
	if patch.AlertThreshold != nil {
		c.AlertThreshold = *patch.AlertThreshold
	}
}

func renewedContract(old *models.Contract, in RenewInput, actor uuid.UUID) *models.Contract {
	next := &models.Contract{
		FirmID:         old.FirmID,
		EmployeeID:     old.EmployeeID,
		ClientID:       old.ClientID,
		Type:           old.Type,
		Status:         models.ContractActive,
		StartDate:      models.Date(in.StartDate),
		EndDate:        models.DatePtr(in.EndDate),
		Position:       old.Position,
		Salary:         old.Salary,
		WorkingHours:   old.WorkingHours,
		Notes:          old.Notes,
		RenewedFromID:  &old.ID,
		IsActive:       true,
		AlertThreshold: old.AlertThreshold,
		CreatedBy:      actor,
	}
	if in.Position != nil {
		next.Position = strings.TrimSpace(*in.Position)
	}
	if in.Salary != nil {
		next.Salary = decimal.NewNullDecimal(*in.Salary)
	}
	if in.WorkingHours != nil {
		next.WorkingHours = in.WorkingHours
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}
	if in.AlertThreshold != nil {
		next.AlertThreshold = *in.AlertThreshold
	}
	return next
}

func terminate(c *models.Contract, day time.Time, reason string) {
	c.Status = models.ContractTerminated
	c.IsActive = false
	c.TerminationDate = &day
	c.TerminationReason = reason
}

func contractEvent(t events.EventType, actor uuid.UUID, c *models.Contract) events.Event {
	return events.Event{
		Type:     t,
		FirmID:   c.FirmID,
		Entity:   models.EntityContract,
		EntityID: c.ID,
		ActorID:  actor,
		Payload:  contractSnapshot(c),
	}
}
