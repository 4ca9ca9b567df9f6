package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/events"
	"github.com/gartstein/staffing/internal/staffing/features"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Role floors of the transfer operations.
const (
	transferReadRole  = models.RoleViewer
	transferWriteRole = models.RoleAdmin
)

// TransferInput describes a transfer request out of the acting firm.
type TransferInput struct {
	EmployeeID uuid.UUID
	ToFirmID   uuid.UUID
	ClientID   *uuid.UUID
	// TransferDate defaults to today.
	TransferDate  time.Time
	EffectiveDate time.Time
	Reason        string
	Notes         string
}

// ApproveResult carries the approved transfer and the destination contract
// when one was opened at approval.
type ApproveResult struct {
	Transfer *models.Transfer
	Contract *models.Contract
}

// CompleteResult carries the completed transfer, the source contracts it
// terminated and the destination contract it opened, if any.
type CompleteResult struct {
	Transfer   *models.Transfer
	Terminated []*models.Contract
	Contract   *models.Contract
}

// TransferService drives the inter-firm transfer workflow.
type TransferService struct {
	service
}

// NewTransferService constructs a TransferService with a repository, an
// access guard, an event producer and a logger.
func NewTransferService(repo Repository, guard Guard, producer EventProducer, logger *zap.Logger, opts ...Option) *TransferService {
	return &TransferService{service: newService(repo, guard, producer, logger.Named("transfer_service"), opts)}
}

// RequestTransfer opens a PENDING transfer of an employee of firmID to a
// sister firm of the same holding.
func (s *TransferService) RequestTransfer(ctx context.Context, actor, firmID uuid.UUID, in TransferInput) (*models.Transfer, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferWriteRole); err != nil {
		return nil, err
	}

	t := &models.Transfer{
		EmployeeID:    in.EmployeeID,
		FromFirmID:    firmID,
		ToFirmID:      in.ToFirmID,
		ClientID:      in.ClientID,
		TransferDate:  models.Date(in.TransferDate),
		EffectiveDate: models.Date(in.EffectiveDate),
		Reason:        strings.TrimSpace(in.Reason),
		Notes:         in.Notes,
		Status:        models.TransferPending,
		RequestedBy:   actor,
	}
	if in.TransferDate.IsZero() {
		t.TransferDate = s.today()
	}
	if err := validateTransferRequest(t); err != nil {
		return nil, err
	}

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		emp, err := s.repo.LockEmployee(ctx, t.EmployeeID)
		if err != nil {
			return err
		}
		if emp.FirmID != firmID {
			return e.ErrNotFound
		}
		if err := s.checkHolding(ctx, t.FromFirmID, t.ToFirmID); err != nil {
			return err
		}
		if err := s.checkClient(ctx, t.ToFirmID, t.ClientID); err != nil {
			return err
		}
		pending, err := s.repo.FindPendingTransfersByEmployee(ctx, t.EmployeeID)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return e.Violation(e.ReasonPendingTransferExists, "the employee already has a pending transfer", map[string]string{
				"pendingTransferId": pending[0].ID.String(),
			})
		}
		if err := s.repo.InsertTransfer(ctx, t); err != nil {
			return err
		}
		return s.audit(ctx, firmID, actor, models.AuditRequest, models.EntityTransfer, t.ID, map[string]any{
			"transfer": transferSnapshot(t),
		})
	})
	if err != nil {
		return nil, s.fail("request transfer", err)
	}

	s.publish(transferEvent(events.TransferRequested, actor, firmID, t))
	return t, nil
}

// ListTransfers returns the transfers entering or leaving firmID, newest first.
func (s *TransferService) ListTransfers(ctx context.Context, actor uuid.UUID, f models.TransferFilter) ([]*models.Transfer, error) {
	if _, err := s.access(ctx, actor, f.FirmID, features.ModuleTransfers, transferReadRole); err != nil {
		return nil, err
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, e.Invalid(e.ReasonInvalidField, fmt.Sprintf("unknown status %q", *f.Status))
	}
	switch f.Direction {
	case models.DirectionAny, models.DirectionIn, models.DirectionOut:
	default:
		return nil, e.Invalid(e.ReasonInvalidField, fmt.Sprintf("unknown direction %q", f.Direction))
	}

	transfers, err := s.repo.ListTransfers(ctx, f)
	if err != nil {
		return nil, s.fail("list transfers", err)
	}
	return transfers, nil
}

// GetTransfer returns a transfer firmID is a party to.
func (s *TransferService) GetTransfer(ctx context.Context, actor, firmID, id uuid.UUID) (*models.Transfer, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferReadRole); err != nil {
		return nil, err
	}
	t, err := s.findTransfer(ctx, firmID, id)
	if err != nil {
		return nil, s.fail("get transfer", err)
	}
	return t, nil
}

// ApproveTransfer accepts a PENDING transfer on behalf of the destination
// firm. A contract seed opens the destination contract now when the employee
// has no ACTIVE contract, and at completion otherwise.
func (s *TransferService) ApproveTransfer(ctx context.Context, actor, firmID, id uuid.UUID, seed *models.ContractSeed) (*ApproveResult, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferWriteRole); err != nil {
		return nil, err
	}
	if seed != nil {
		if err := validateSeed(seed); err != nil {
			return nil, err
		}
	}

	var res ApproveResult
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := requireParty(t.ToFirmID == firmID, "only the destination firm may approve a transfer"); err != nil {
			return err
		}
		if err := transition(t, models.TransferApproved); err != nil {
			return err
		}
		now := s.clock.Now()
		t.ApprovedBy, t.ApprovedAt = &actor, &now

		metadata := map[string]any{"transfer": transferSnapshot(t)}
		if seed != nil {
			active, err := s.repo.FindActiveContractsByEmployee(ctx, t.EmployeeID)
			if err != nil {
				return err
			}
			current, err := singleActive(t.EmployeeID, active)
			if err != nil {
				return err
			}
			if current == nil {
				c := s.contractFromSeed(seed, t, actor)
				if err := s.repo.InsertContract(ctx, c); err != nil {
					return err
				}
				res.Contract = c
				metadata["contractId"] = c.ID.String()
			} else {
				t.ContractSeed = seed
				metadata["contractDeferred"] = true
			}
		}

		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		res.Transfer = t
		return s.audit(ctx, firmID, actor, models.AuditApprove, models.EntityTransfer, t.ID, metadata)
	})
	if err != nil {
		return nil, s.fail("approve transfer", err)
	}

	s.publish(transferEvent(events.TransferApproved, actor, firmID, res.Transfer))
	if res.Contract != nil {
		s.publish(contractEvent(events.ContractCreated, actor, res.Contract))
	}
	return &res, nil
}

// RejectTransfer declines a PENDING transfer on behalf of the destination firm.
func (s *TransferService) RejectTransfer(ctx context.Context, actor, firmID, id uuid.UUID, reason string) (*models.Transfer, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferWriteRole); err != nil {
		return nil, err
	}

	var rejected *models.Transfer
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := requireParty(t.ToFirmID == firmID, "only the destination firm may reject a transfer"); err != nil {
			return err
		}
		if err := transition(t, models.TransferRejected); err != nil {
			return err
		}
		now := s.clock.Now()
		t.RejectedBy, t.RejectedAt = &actor, &now
		t.RejectionReason = strings.TrimSpace(reason)
		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		rejected = t
		return s.audit(ctx, firmID, actor, models.AuditReject, models.EntityTransfer, t.ID, map[string]any{
			"reason": t.RejectionReason,
		})
	})
	if err != nil {
		return nil, s.fail("reject transfer", err)
	}

	s.publish(transferEvent(events.TransferRejected, actor, firmID, rejected))
	return rejected, nil
}

// CompleteTransfer finalises an APPROVED transfer once its effective date
// has been reached. In one transaction it terminates the employee's ACTIVE
// contracts in the source firm, re-homes the employee, opens a deferred
// destination contract and marks the transfer COMPLETED.
func (s *TransferService) CompleteTransfer(ctx context.Context, actor, firmID, id uuid.UUID) (*CompleteResult, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferWriteRole); err != nil {
		return nil, err
	}

	var res CompleteResult
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := transition(t, models.TransferCompleted); err != nil {
			return err
		}
		today := s.today()
		if today.Before(t.EffectiveDate) {
			return e.Violation(e.ReasonTransferNotEffective, "the transfer cannot be completed before its effective date", map[string]string{
				"effectiveDate": formatDate(t.EffectiveDate),
				"today":         formatDate(today),
			})
		}

		emp, err := s.repo.FindEmployee(ctx, t.EmployeeID)
		if err != nil {
			return err
		}
		if emp.FirmID != t.FromFirmID {
			return e.Violation(e.ReasonEmployeeNotInFirm, "the employee no longer belongs to the source firm", nil)
		}

		active, err := s.repo.FindActiveContractsByEmployee(ctx, t.EmployeeID)
		if err != nil {
			return err
		}
		remaining := 0
		for _, c := range active {
			if c.FirmID != t.FromFirmID {
				remaining++
				continue
			}
			terminate(c, today, "transfer "+t.ID.String())
			if err := s.repo.UpdateContract(ctx, c); err != nil {
				return err
			}
			res.Terminated = append(res.Terminated, c)
		}

		if err := s.repo.UpdateEmployeeAssignment(ctx, t.EmployeeID, t.ToFirmID, t.ClientID); err != nil {
			return err
		}

		if t.ContractSeed != nil {
			if remaining > 0 {
				return e.Violation(e.ReasonActiveContractExists, "the employee already has an active contract in another firm", nil)
			}
			c := s.contractFromSeed(t.ContractSeed, t, actor)
			if err := s.repo.InsertContract(ctx, c); err != nil {
				return err
			}
			res.Contract = c
		}

		now := s.clock.Now()
		t.CompletedBy, t.CompletedAt = &actor, &now
		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		res.Transfer = t

		terminatedIDs := make([]string, 0, len(res.Terminated))
		for _, c := range res.Terminated {
			terminatedIDs = append(terminatedIDs, c.ID.String())
		}
		metadata := map[string]any{
			"fromFirmId":            t.FromFirmID.String(),
			"toFirmId":              t.ToFirmID.String(),
			"employeeId":            t.EmployeeID.String(),
			"terminatedContractIds": terminatedIDs,
		}
		if res.Contract != nil {
			metadata["contractId"] = res.Contract.ID.String()
		}
		return s.audit(ctx, firmID, actor, models.AuditComplete, models.EntityTransfer, t.ID, metadata)
	})
	if err != nil {
		return nil, s.fail("complete transfer", err)
	}

	s.publish(transferEvent(events.TransferCompleted, actor, firmID, res.Transfer))
	for _, c := range res.Terminated {
		s.publish(contractEvent(events.ContractTerminated, actor, c))
	}
	if res.Contract != nil {
		s.publish(contractEvent(events.ContractCreated, actor, res.Contract))
	}
	return &res, nil
}

// UpdateTransfer edits a PENDING transfer on behalf of the source firm.
func (s *TransferService) UpdateTransfer(ctx context.Context, actor, firmID, id uuid.UUID, patch models.TransferUpdate) (*models.Transfer, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferWriteRole); err != nil {
		return nil, err
	}

	var updated *models.Transfer
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := requireParty(t.FromFirmID == firmID, "only the source firm may edit a transfer"); err != nil {
			return err
		}
		if t.Status != models.TransferPending {
			return illegalTransition(t.Status, "edited")
		}
		before := transferSnapshot(t)

		applyTransferUpdate(t, patch)
		if err := validateTransferRequest(t); err != nil {
			return err
		}
		if err := s.checkClient(ctx, t.ToFirmID, t.ClientID); err != nil {
			return err
		}
		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		updated = t
		return s.audit(ctx, firmID, actor, models.AuditUpdate, models.EntityTransfer, t.ID, map[string]any{
			"before": before,
			"after":  transferSnapshot(t),
		})
	})
	if err != nil {
		return nil, s.fail("update transfer", err)
	}

	s.publish(transferEvent(events.TransferUpdated, actor, firmID, updated))
	return updated, nil
}

// CancelTransfer withdraws a PENDING or REJECTED transfer on behalf of the
// source firm.
func (s *TransferService) CancelTransfer(ctx context.Context, actor, firmID, id uuid.UUID) (*models.Transfer, error) {
	if _, err := s.access(ctx, actor, firmID, features.ModuleTransfers, transferWriteRole); err != nil {
		return nil, err
	}

	var cancelled *models.Transfer
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTransfer(ctx, firmID, id)
		if err != nil {
			return err
		}
		if err := requireParty(t.FromFirmID == firmID, "only the source firm may cancel a transfer"); err != nil {
			return err
		}
		previous := t.Status
		if err := transition(t, models.TransferCancelled); err != nil {
			return err
		}
		now := s.clock.Now()
		t.CancelledAt = &now
		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		cancelled = t
		return s.audit(ctx, firmID, actor, models.AuditCancel, models.EntityTransfer, t.ID, map[string]any{
			"previousStatus": string(previous),
		})
	})
	if err != nil {
		return nil, s.fail("cancel transfer", err)
	}

	s.publish(transferEvent(events.TransferCancelled, actor, firmID, cancelled))
	return cancelled, nil
}

// findTransfer loads a transfer and hides it from firms that are not a party.
func (s *TransferService) findTransfer(ctx context.Context, firmID, id uuid.UUID) (*models.Transfer, error) {
	t, err := s.repo.FindTransferByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.FromFirmID != firmID && t.ToFirmID != firmID {
		return nil, e.ErrNotFound
	}
	return t, nil
}

// lockTransfer locks the transfer's employee and re-reads the transfer.
func (s *TransferService) lockTransfer(ctx context.Context, firmID, id uuid.UUID) (*models.Transfer, error) {
	t, err := s.findTransfer(ctx, firmID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.LockEmployee(ctx, t.EmployeeID); err != nil {
		return nil, err
	}
	return s.findTransfer(ctx, firmID, id)
}

func (s *TransferService) checkHolding(ctx context.Context, fromID, toID uuid.UUID) error {
	from, err := s.repo.FindFirm(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := s.repo.FindFirm(ctx, toID)
	if err != nil {
		return err
	}
	if !from.SameHolding(to) {
		return e.Invalid(e.ReasonHoldingMismatch, "both firms must belong to the same holding")
	}
	return nil
}

func (s *TransferService) contractFromSeed(seed *models.ContractSeed, t *models.Transfer, actor uuid.UUID) *models.Contract {
	threshold := seed.AlertThreshold
	if threshold == 0 {
		threshold = s.defaultAlertThreshold
	}
	return &models.Contract{
		FirmID:         t.ToFirmID,
		EmployeeID:     t.EmployeeID,
		ClientID:       t.ClientID,
		Type:           seed.Type,
		Status:         models.ContractActive,
		StartDate:      models.Date(seed.StartDate),
		EndDate:        models.DatePtr(seed.EndDate),
		Position:       strings.TrimSpace(seed.Position),
		Salary:         seed.Salary,
		WorkingHours:   seed.WorkingHours,
		Notes:          seed.Notes,
		IsActive:       true,
		AlertThreshold: threshold,
		CreatedBy:      actor,
	}
}

func transition(t *models.Transfer, next models.TransferStatus) error {
	if !t.Status.CanTransition(next) {
		return illegalTransition(t.Status, strings.ToLower(string(next)))
	}
	t.Status = next
	return nil
}

func illegalTransition(from models.TransferStatus, action string) error {
	return e.Violation(e.ReasonIllegalTransition, fmt.Sprintf("a transfer in status %s cannot be %s", from, action), map[string]string{
		"status": string(from),
	})
}

func requireParty(ok bool, message string) error {
	if ok {
		return nil
	}
	return e.Denied(e.ReasonWrongFirm, message)
}

func validateTransferRequest(t *models.Transfer) error {
	if t.EmployeeID == uuid.Nil {
		return e.Invalid(e.ReasonMissingField, "employeeId is required")
	}
	if t.ToFirmID == uuid.Nil {
		return e.Invalid(e.ReasonMissingField, "toFirmId is required")
	}
	if t.ToFirmID == t.FromFirmID {
		return e.Invalid(e.ReasonSameFirm, "an employee cannot be transferred to their own firm")
	}
	if t.EffectiveDate.IsZero() {
		return e.Invalid(e.ReasonMissingField, "effectiveDate is required")
	}
	if t.EffectiveDate.Before(t.TransferDate) {
		return e.Invalid(e.ReasonInvalidDateRange, "effectiveDate must not be before transferDate")
	}
	return nil
}

func validateSeed(seed *models.ContractSeed) error {
	if seed.StartDate.IsZero() {
		return e.Invalid(e.ReasonMissingField, "contractData.startDate is required")
	}
	return validateTerms(&models.Contract{
		Type:           seed.Type,
		StartDate:      models.Date(seed.StartDate),
		EndDate:        models.DatePtr(seed.EndDate),
		Salary:         seed.Salary,
		WorkingHours:   seed.WorkingHours,
		AlertThreshold: seed.AlertThreshold,
	})
}

func applyTransferUpdate(t *models.Transfer, patch models.TransferUpdate) {
	if patch.TransferDate != nil {
		t.TransferDate = models.Date(*patch.TransferDate)
	}
	if patch.EffectiveDate != nil {
		t.EffectiveDate = models.Date(*patch.EffectiveDate)
	}
	if patch.Reason != nil {
		t.Reason = strings.TrimSpace(*patch.Reason)
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	if patch.ClearClient {
		t.ClientID = nil
	} else if patch.ClientID != nil {
		t.ClientID = patch.ClientID
	}
}

func transferEvent(t events.EventType, actor, firmID uuid.UUID, tr *models.Transfer) events.Event {
	return events.Event{
		Type:     t,
		FirmID:   firmID,
		Entity:   models.EntityTransfer,
		EntityID: tr.ID,
		ActorID:  actor,
		Payload:  transferSnapshot(tr),
	}
}
