package db

import (
	"context"

	dbmodels "github.com/gartstein/staffing/internal/staffing/db/models"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// contractSortColumns whitelists the columns a listing may be ordered by.
var contractSortColumns = map[string]string{
	"startDate":      "start_date",
	"endDate":        "end_date",
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
	"type":           "type",
	"status":         "status",
	"position":       "position",
	"salary":         "salary",
	"alertThreshold": "alert_threshold",
}

// SortableContractColumn reports whether a listing can be ordered by name.
func SortableContractColumn(name string) bool {
	_, ok := contractSortColumns[name]
	return ok
}

func (r *Repository) FindContractByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var rec dbmodels.Contract
	if err := r.conn(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return contractFromRecord(&rec), nil
}

// FindContractsByEmployee returns every contract of an employee, oldest first.
func (r *Repository) FindContractsByEmployee(ctx context.Context, employeeID uuid.UUID) ([]*models.Contract, error) {
	var recs []dbmodels.Contract
	err := r.conn(ctx).
		Where("employee_id = ?", employeeID).
		Order("start_date ASC").Order("created_at ASC").Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return contractsFromRecords(recs), nil
}

// FindActiveContractsByEmployee returns the ACTIVE contracts of an employee.
// More than one result means the single-active invariant was broken.
func (r *Repository) FindActiveContractsByEmployee(ctx context.Context, employeeID uuid.UUID) ([]*models.Contract, error) {
	var recs []dbmodels.Contract
	err := r.conn(ctx).
		Where("employee_id = ? AND status = ?", employeeID, string(models.ContractActive)).
		Find(&recs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return contractsFromRecords(recs), nil
}

func (r *Repository) InsertContract(ctx context.Context, c *models.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	rec := contractToRecord(c)
	if err := r.conn(ctx).Create(rec).Error; err != nil {
		return translateError(err)
	}
	c.CreatedAt, c.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return nil
}

// UpdateContract overwrites every column of an existing contract.
func (r *Repository) UpdateContract(ctx context.Context, c *models.Contract) error {
	rec := contractToRecord(c)
	result := r.conn(ctx).Model(&dbmodels.Contract{}).
		Where("id = ?", c.ID).
		Select("*").Omit("id", "created_at", "created_by").
		Updates(rec)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteContract(ctx context.Context, id uuid.UUID) error {
	result := r.conn(ctx).Delete(&dbmodels.Contract{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// ListContracts returns one page of a firm's contracts. Rows with equal sort
// keys are ordered by id so pages never overlap.
func (r *Repository) ListContracts(ctx context.Context, f models.ContractFilter) ([]*models.Contract, int64, error) {
	q := r.conn(ctx).Model(&dbmodels.Contract{}).Where("firm_id = ?", f.FirmID)
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.Type != nil {
		q = q.Where("type = ?", string(*f.Type))
	}
	if f.EmployeeID != nil {
		q = q.Where("employee_id = ?", *f.EmployeeID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	column, ok := contractSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}

	var recs []dbmodels.Contract
	err := q.Order(column + " " + direction).Order("id " + direction).
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&recs).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return contractsFromRecords(recs), total, nil
}

func contractsFromRecords(recs []dbmodels.Contract) []*models.Contract {
	out := make([]*models.Contract, 0, len(recs))
	for i := range recs {
		out = append(out, contractFromRecord(&recs[i]))
	}
	return out
}
