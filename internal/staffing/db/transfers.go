package db

import (
	"context"

	dbmodels "github.com/gartstein/staffing/internal/staffing/db/models"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
)

func (r *Repository) FindTransferByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	var rec dbmodels.EmployeeTransfer
	if err := r.conn(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return transferFromRecord(&rec)
}

// FindPendingTransfersByEmployee returns the PENDING transfers of an employee.
func (r *Repository) FindPendingTransfersByEmployee(ctx context.Context, employeeID uuid.UUID) ([]*models.Transfer, error) {
	var recs []dbmodels.EmployeeTransfer
	err := r.conn(ctx).
		Where("employee_id = ? AND status = ?", employeeID, string(models.TransferPending)).
		Find(&recs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return transfersFromRecords(recs)
}

func (r *Repository) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	rec, err := transferToRecord(t)
	if err != nil {
		return err
	}
	if err := r.conn(ctx).Create(rec).Error; err != nil {
		return translateError(err)
	}
	t.CreatedAt, t.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return nil
}

// UpdateTransfer overwrites every column of an existing transfer.
func (r *Repository) UpdateTransfer(ctx context.Context, t *models.Transfer) error {
	rec, err := transferToRecord(t)
	if err != nil {
		return err
	}
	result := r.conn(ctx).Model(&dbmodels.EmployeeTransfer{}).
		Where("id = ?", t.ID).
		Select("*").Omit("id", "created_at", "requested_by").
		Updates(rec)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// ListTransfers returns transfers touching a firm, newest first.
func (r *Repository) ListTransfers(ctx context.Context, f models.TransferFilter) ([]*models.Transfer, error) {
	q := r.conn(ctx).Model(&dbmodels.EmployeeTransfer{})
	switch f.Direction {
	case models.DirectionIn:
		q = q.Where("to_firm_id = ?", f.FirmID)
	case models.DirectionOut:
		q = q.Where("from_firm_id = ?", f.FirmID)
	default:
		q = q.Where("from_firm_id = ? OR to_firm_id = ?", f.FirmID, f.FirmID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var recs []dbmodels.EmployeeTransfer
	if err := q.Order("created_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, translateError(err)
	}
	return transfersFromRecords(recs)
}

func transfersFromRecords(recs []dbmodels.EmployeeTransfer) ([]*models.Transfer, error) {
	out := make([]*models.Transfer, 0, len(recs))
	for i := range recs {
		t, err := transferFromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
