// Package controller implements the contract lifecycle and the inter-firm
// transfer workflow. Every mutation runs guard checks, validation and one
// repository transaction that also writes the audit entry, then publishes a
// domain event once the transaction has committed.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/staffing/internal/staffing/auth"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/events"
	"github.com/gartstein/staffing/internal/staffing/features"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository defines the storage the services need. Calls made with the
// context handed to WithinTransaction's callback join that transaction.
type Repository interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	FindFirm(ctx context.Context, id uuid.UUID) (*models.Firm, error)
	FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	LockEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	UpdateEmployeeAssignment(ctx context.Context, id, firmID uuid.UUID, clientID *uuid.UUID) error

	FindContractByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	FindContractsByEmployee(ctx context.Context, employeeID uuid.UUID) ([]*models.Contract, error)
	FindActiveContractsByEmployee(ctx context.Context, employeeID uuid.UUID) ([]*models.Contract, error)
	InsertContract(ctx context.Context, c *models.Contract) error
	UpdateContract(ctx context.Context, c *models.Contract) error
	DeleteContract(ctx context.Context, id uuid.UUID) error
	ListContracts(ctx context.Context, f models.ContractFilter) ([]*models.Contract, int64, error)

	FindTransferByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error)
	FindPendingTransfersByEmployee(ctx context.Context, employeeID uuid.UUID) ([]*models.Transfer, error)
	InsertTransfer(ctx context.Context, t *models.Transfer) error
	UpdateTransfer(ctx context.Context, t *models.Transfer) error
	ListTransfers(ctx context.Context, f models.TransferFilter) ([]*models.Transfer, error)

	RecordAudit(ctx context.Context, entry *models.AuditEntry) error
}

// Guard resolves the caller's membership in a firm.
type Guard interface {
	Authorize(ctx context.Context, userID, firmID uuid.UUID) (*models.Membership, error)
}

type EventProducer interface {
	Produce(event events.Event)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option customises a service.
type Option func(*service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *service) { s.clock = c }
}

// WithFeatures installs the module registry. All modules are enabled otherwise.
func WithFeatures(r features.Registry) Option {
	return func(s *service) { s.features = r }
}

// WithDefaultAlertThreshold sets the threshold given to contracts created
// without one.
func WithDefaultAlertThreshold(days int) Option {
	return func(s *service) { s.defaultAlertThreshold = days }
}

// service holds what both workflow services share.
type service struct {
	repo                  Repository
	guard                 Guard
	producer              EventProducer
	features              features.Registry
	clock                 Clock
	logger                *zap.Logger
	defaultAlertThreshold int
}

func newService(repo Repository, guard Guard, producer EventProducer, logger *zap.Logger, opts []Option) service {
	s := service{
		repo:                  repo,
		guard:                 guard,
		producer:              producer,
		features:              features.AllEnabled(),
		clock:                 systemClock{},
		logger:                logger,
		defaultAlertThreshold: models.DefaultAlertThreshold,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// access checks, in order: caller identity, membership, module availability
// and role floor.
func (s *service) access(ctx context.Context, actor, firmID uuid.UUID, module features.Module, floor models.Role) (*models.Membership, error) {
	m, err := s.guard.Authorize(ctx, actor, firmID)
	if err != nil {
		return nil, err
	}
	if !s.features.Enabled(firmID, module) {
		return nil, e.Denied(e.ReasonModuleDisabled, fmt.Sprintf("the %s module is disabled for this firm", module))
	}
	if err := auth.RequireAtLeast(m, floor); err != nil {
		return nil, err
	}
	return m, nil
}

// fail passes taxonomy errors through and logs anything else before wrapping it.
func (s *service) fail(op string, err error) error {
	if e.IsKnown(err) {
		if errors.Is(err, e.ErrInternal) {
			s.logger.Error("Data integrity failure", zap.String("operation", op), zap.Error(err))
		}
		return err
	}
	s.logger.Error("Operation failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *service) today() time.Time {
	return models.Date(s.clock.Now())
}

func (s *service) publish(evts ...events.Event) {
	for _, ev := range evts {
		s.producer.Produce(ev)
	}
}

func (s *service) audit(ctx context.Context, firmID, actor uuid.UUID, action models.AuditAction, entity string, entityID uuid.UUID, metadata map[string]any) error {
	err := s.repo.RecordAudit(ctx, &models.AuditEntry{
		FirmID:    firmID,
		ActorID:   actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Metadata:  metadata,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// singleActive enforces the at-most-one-ACTIVE invariant on a read.
func singleActive(employeeID uuid.UUID, active []*models.Contract) (*models.Contract, error) {
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return active[0], nil
	default:
		return nil, fmt.Errorf("%w: employee %s has %d active contracts", e.ErrInternal, employeeID, len(active))
	}
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func uuidPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// contractSnapshot renders a contract for audit metadata and event payloads.
func contractSnapshot(c *models.Contract) map[string]any {
	snap := map[string]any{
		"id":                c.ID.String(),
		"firmId":            c.FirmID.String(),
		"employeeId":        c.EmployeeID.String(),
		"clientId":          uuidPtr(c.ClientID),
		"type":              string(c.Type),
		"status":            string(c.Status),
		"startDate":         formatDate(c.StartDate),
		"endDate":           formatDatePtr(c.EndDate),
		"position":          c.Position,
		"salary":            nil,
		"workingHours":      c.WorkingHours,
		"notes":             c.Notes,
		"renewedFromId":     uuidPtr(c.RenewedFromID),
		"isActive":          c.IsActive,
		"alertThreshold":    c.AlertThreshold,
		"terminationDate":   formatDatePtr(c.TerminationDate),
		"terminationReason": c.TerminationReason,
		"createdBy":         c.CreatedBy.String(),
	}
	if c.Salary.Valid {
		snap["salary"] = c.Salary.Decimal.StringFixed(2)
	}
	return snap
}

// transferSnapshot renders a transfer for audit metadata and event payloads.
func transferSnapshot(t *models.Transfer) map[string]any {
	return map[string]any{
		"id":            t.ID.String(),
		"employeeId":    t.EmployeeID.String(),
		"fromFirmId":    t.FromFirmID.String(),
		"toFirmId":      t.ToFirmID.String(),
		"clientId":      uuidPtr(t.ClientID),
		"transferDate":  formatDate(t.TransferDate),
		"effectiveDate": formatDate(t.EffectiveDate),
		"reason":        t.Reason,
		"notes":         t.Notes,
		"status":        string(t.Status),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, e.ErrNotFound)
}
