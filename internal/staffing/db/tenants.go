package db

import (
	"context"
	"time"

	dbmodels "github.com/gartstein/staffing/internal/staffing/db/models"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
)

func (r *Repository) FindFirm(ctx context.Context, id uuid.UUID) (*models.Firm, error) {
	var rec dbmodels.Firm
	if err := r.conn(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &models.Firm{ID: rec.ID, Name: rec.Name, HoldingID: rec.HoldingID}, nil
}

func (r *Repository) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var rec dbmodels.Client
	if err := r.conn(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &models.Client{ID: rec.ID, FirmID: rec.FirmID, Name: rec.Name}, nil
}

func (r *Repository) FindEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var rec dbmodels.Employee
	if err := r.conn(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return employeeFromRecord(&rec), nil
}

// LockEmployee reads an employee row and locks it for the rest of the
// transaction, serialising contract and transfer writes per employee.
func (r *Repository) LockEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var rec dbmodels.Employee
	if err := forUpdate(r.conn(ctx)).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return employeeFromRecord(&rec), nil
}

// UpdateEmployeeAssignment re-homes an employee to a firm and client.
func (r *Repository) UpdateEmployeeAssignment(ctx context.Context, id, firmID uuid.UUID, clientID *uuid.UUID) error {
	result := r.conn(ctx).Model(&dbmodels.Employee{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"firm_id":            firmID,
			"assigned_client_id": clientID,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) FindMembership(ctx context.Context, userID, firmID uuid.UUID) (*models.Membership, error) {
	var rec dbmodels.UserFirm
	if err := r.conn(ctx).First(&rec, "user_id = ? AND firm_id = ?", userID, firmID).Error; err != nil {
		return nil, translateError(err)
	}
	return &models.Membership{UserID: rec.UserID, FirmID: rec.FirmID, Role: models.Role(rec.Role)}, nil
}

// Seed inserts tenant rows. It backs fixtures and local bootstrapping; the
// owning subsystems write these tables in production.
func (r *Repository) Seed(ctx context.Context, firms []models.Firm, clients []models.Client, employees []models.Employee, memberships []models.Membership) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		db := r.conn(ctx)
		for _, f := range firms {
			if err := db.Create(&dbmodels.Firm{ID: f.ID, Name: f.Name, HoldingID: f.HoldingID}).Error; err != nil {
				return translateError(err)
			}
		}
		for _, c := range clients {
			if err := db.Create(&dbmodels.Client{ID: c.ID, FirmID: c.FirmID, Name: c.Name}).Error; err != nil {
				return translateError(err)
			}
		}
		for _, emp := range employees {
			rec := &dbmodels.Employee{
				ID:               emp.ID,
				FirmID:           emp.FirmID,
				AssignedClientID: emp.AssignedClientID,
				FirstName:        emp.FirstName,
				LastName:         emp.LastName,
			}
			if err := db.Create(rec).Error; err != nil {
				return translateError(err)
			}
		}
		for _, m := range memberships {
			if err := db.Create(&dbmodels.UserFirm{UserID: m.UserID, FirmID: m.FirmID, Role: string(m.Role)}).Error; err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

func employeeFromRecord(rec *dbmodels.Employee) *models.Employee {
	return &models.Employee{
		ID:               rec.ID,
		FirmID:           rec.FirmID,
		AssignedClientID: rec.AssignedClientID,
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
		UpdatedAt:        rec.UpdatedAt,
	}
}
