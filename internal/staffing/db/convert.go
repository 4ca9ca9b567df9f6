package db

import (
	"encoding/json"
	"fmt"

	dbmodels "github.com/gartstein/staffing/internal/staffing/db/models"
	"github.com/gartstein/staffing/internal/staffing/models"
	"gorm.io/datatypes"
)

func contractToRecord(c *models.Contract) *dbmodels.Contract {
	return &dbmodels.Contract{
		ID:                c.ID,
		FirmID:            c.FirmID,
		EmployeeID:        c.EmployeeID,
		ClientID:          c.ClientID,
		Type:              string(c.Type),
		Status:            string(c.Status),
		StartDate:         models.Date(c.StartDate),
		EndDate:           models.DatePtr(c.EndDate),
		Position:          c.Position,
		Salary:            c.Salary,
		WorkingHours:      c.WorkingHours,
		Notes:             c.Notes,
		RenewedFromID:     c.RenewedFromID,
		IsActive:          c.IsActive,
		AlertThreshold:    c.AlertThreshold,
		TerminationDate:   models.DatePtr(c.TerminationDate),
		TerminationReason: c.TerminationReason,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func contractFromRecord(rec *dbmodels.Contract) *models.Contract {
	return &models.Contract{
		ID:                rec.ID,
		FirmID:            rec.FirmID,
		EmployeeID:        rec.EmployeeID,
		ClientID:          rec.ClientID,
		Type:              models.ContractType(rec.Type),
		Status:            models.ContractStatus(rec.Status),
		StartDate:         models.Date(rec.StartDate),
		EndDate:           models.DatePtr(rec.EndDate),
		Position:          rec.Position,
		Salary:            rec.Salary,
		WorkingHours:      rec.WorkingHours,
		Notes:             rec.Notes,
		RenewedFromID:     rec.RenewedFromID,
		IsActive:          rec.IsActive,
		AlertThreshold:    rec.AlertThreshold,
		TerminationDate:   models.DatePtr(rec.TerminationDate),
		TerminationReason: rec.TerminationReason,
		CreatedBy:         rec.CreatedBy,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func transferToRecord(t *models.Transfer) (*dbmodels.EmployeeTransfer, error) {
	var seed datatypes.JSON
	if t.ContractSeed != nil {
		raw, err := json.Marshal(t.ContractSeed)
		if err != nil {
			return nil, fmt.Errorf("failed to encode contract seed: %w", err)
		}
		seed = raw
	}
	return &dbmodels.EmployeeTransfer{
		ID:              t.ID,
		EmployeeID:      t.EmployeeID,
		FromFirmID:      t.FromFirmID,
		ToFirmID:        t.ToFirmID,
		ClientID:        t.ClientID,
		TransferDate:    models.Date(t.TransferDate),
		EffectiveDate:   models.Date(t.EffectiveDate),
		Reason:          t.Reason,
		Notes:           t.Notes,
		Status:          string(t.Status),
		RequestedBy:     t.RequestedBy,
		ApprovedBy:      t.ApprovedBy,
		ApprovedAt:      t.ApprovedAt,
		RejectedBy:      t.RejectedBy,
		RejectedAt:      t.RejectedAt,
		RejectionReason: t.RejectionReason,
		CompletedBy:     t.CompletedBy,
		CompletedAt:     t.CompletedAt,
		CancelledAt:     t.CancelledAt,
		ContractSeed:    seed,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

func transferFromRecord(rec *dbmodels.EmployeeTransfer) (*models.Transfer, error) {
	var seed *models.ContractSeed
	if len(rec.ContractSeed) > 0 && string(rec.ContractSeed) != "null" {
		seed = &models.ContractSeed{}
		if err := json.Unmarshal(rec.ContractSeed, seed); err != nil {
			return nil, fmt.Errorf("failed to decode contract seed of transfer %s: %w", rec.ID, err)
		}
	}
	return &models.Transfer{
		ID:              rec.ID,
		EmployeeID:      rec.EmployeeID,
		FromFirmID:      rec.FromFirmID,
		ToFirmID:        rec.ToFirmID,
		ClientID:        rec.ClientID,
		TransferDate:    models.Date(rec.TransferDate),
		EffectiveDate:   models.Date(rec.EffectiveDate),
		Reason:          rec.Reason,
		Notes:           rec.Notes,
		Status:          models.TransferStatus(rec.Status),
		RequestedBy:     rec.RequestedBy,
		ApprovedBy:      rec.ApprovedBy,
		ApprovedAt:      rec.ApprovedAt,
		RejectedBy:      rec.RejectedBy,
		RejectedAt:      rec.RejectedAt,
		RejectionReason: rec.RejectionReason,
		CompletedBy:     rec.CompletedBy,
		CompletedAt:     rec.CompletedAt,
		CancelledAt:     rec.CancelledAt,
		ContractSeed:    seed,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}
