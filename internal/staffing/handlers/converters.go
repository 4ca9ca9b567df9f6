package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/staffing/controller"
	"github.com/gartstein/staffing/internal/staffing/eligibility"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// nullable tells an absent JSON field apart from an explicit null.
type nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type createContractRequest struct {
	EmployeeID     string   `json:"employeeId"`
	ClientID       *string  `json:"clientId"`
	Type           string   `json:"type"`
	StartDate      string   `json:"startDate"`
	EndDate        *string  `json:"endDate"`
	Position       string   `json:"position"`
	Salary         *string  `json:"salary"`
	WorkingHours   *float64 `json:"workingHours"`
	Notes          string   `json:"notes"`
	AlertThreshold *int     `json:"alertThreshold"`
}

type updateContractRequest struct {
	Type           *string          `json:"type"`
	StartDate      *string          `json:"startDate"`
	EndDate        nullable[string] `json:"endDate"`
	Position       *string          `json:"position"`
	Salary         *string          `json:"salary"`
	WorkingHours   *float64         `json:"workingHours"`
	Notes          *string          `json:"notes"`
	AlertThreshold *int             `json:"alertThreshold"`
}

type renewContractRequest struct {
	StartDate      string   `json:"startDate"`
	EndDate        *string  `json:"endDate"`
	Position       *string  `json:"position"`
	Salary         *string  `json:"salary"`
	WorkingHours   *float64 `json:"workingHours"`
	Notes          *string  `json:"notes"`
	AlertThreshold *int     `json:"alertThreshold"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type transferRequest struct {
	EmployeeID    string  `json:"employeeId"`
	ToFirmID      string  `json:"toFirmId"`
	ClientID      *string `json:"clientId"`
	TransferDate  *string `json:"transferDate"`
	EffectiveDate string  `json:"effectiveDate"`
	Reason        string  `json:"reason"`
	Notes         string  `json:"notes"`
}

type updateTransferRequest struct {
	TransferDate  *string          `json:"transferDate"`
	EffectiveDate *string          `json:"effectiveDate"`
	Reason        *string          `json:"reason"`
	Notes         *string          `json:"notes"`
	ClientID      nullable[string] `json:"clientId"`
}

type approveTransferRequest struct {
	CreateNewContract bool                 `json:"createNewContract"`
	ContractData      *contractSeedRequest `json:"contractData"`
}

type contractSeedRequest struct {
	Type           string   `json:"type"`
	StartDate      string   `json:"startDate"`
	EndDate        *string  `json:"endDate"`
	Position       string   `json:"position"`
	Salary         *string  `json:"salary"`
	WorkingHours   *float64 `json:"workingHours"`
	Notes          string   `json:"notes"`
	AlertThreshold *int     `json:"alertThreshold"`
}

type contractResponse struct {
	ID                uuid.UUID  `json:"id"`
	FirmID            uuid.UUID  `json:"firmId"`
	EmployeeID        uuid.UUID  `json:"employeeId"`
	ClientID          *uuid.UUID `json:"clientId"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	StartDate         string     `json:"startDate"`
	EndDate           *string    `json:"endDate"`
	Position          string     `json:"position"`
	Salary            *string    `json:"salary"`
	WorkingHours      *float64   `json:"workingHours"`
	Notes             string     `json:"notes"`
	RenewedFromID     *uuid.UUID `json:"renewedFromId"`
	IsActive          bool       `json:"isActive"`
	AlertThreshold    int        `json:"alertThreshold"`
	TerminationDate   *string    `json:"terminationDate"`
	TerminationReason string     `json:"terminationReason,omitempty"`
	CreatedBy         uuid.UUID  `json:"createdBy"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	IsExpired       bool `json:"isExpired"`
	ExpiresSoon     bool `json:"expiresSoon"`
	DaysUntilExpiry *int `json:"daysUntilExpiry"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type contractPageResponse struct {
	Contracts  []contractResponse `json:"contracts"`
	Pagination paginationResponse `json:"pagination"`
}

type contractListResponse struct {
	Contracts []contractResponse `json:"contracts"`
}

type eligibilityResponse struct {
	IsEligible              bool    `json:"isEligible"`
	Reason                  string  `json:"reason,omitempty"`
	Message                 string  `json:"message,omitempty"`
	CurrentDurationMonths   int     `json:"currentDurationMonths"`
	CurrentCumulativeMonths float64 `json:"currentCumulativeMonths"`
	NewDurationMonths       float64 `json:"newDurationMonths"`
	AvailableMonths         float64 `json:"availableMonths"`
	RemainingMonths         float64 `json:"remainingMonths"`
}

type renewResponse struct {
	Previous    contractResponse    `json:"previousContract"`
	Contract    contractResponse    `json:"contract"`
	Eligibility eligibilityResponse `json:"eligibility"`
}

type transferResponse struct {
	ID              uuid.UUID  `json:"id"`
	EmployeeID      uuid.UUID  `json:"employeeId"`
	FromFirmID      uuid.UUID  `json:"fromFirmId"`
	ToFirmID        uuid.UUID  `json:"toFirmId"`
	ClientID        *uuid.UUID `json:"clientId"`
	TransferDate    string     `json:"transferDate"`
	EffectiveDate   string     `json:"effectiveDate"`
	Reason          string     `json:"reason"`
	Notes           string     `json:"notes"`
	Status          string     `json:"status"`
	RequestedBy     uuid.UUID  `json:"requestedBy"`
	ApprovedBy      *uuid.UUID `json:"approvedBy"`
	ApprovedAt      *time.Time `json:"approvedAt"`
	RejectedBy      *uuid.UUID `json:"rejectedBy"`
	RejectedAt      *time.Time `json:"rejectedAt"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	CompletedBy     *uuid.UUID `json:"completedBy"`
	CompletedAt     *time.Time `json:"completedAt"`
	CancelledAt     *time.Time `json:"cancelledAt"`
	// ContractPending is set while an approved transfer holds a contract to
	// open at completion.
	ContractPending bool      `json:"contractPending"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type transferListResponse struct {
	Transfers []transferResponse `json:"transfers"`
}

type approveResponse struct {
	Transfer transferResponse  `json:"transfer"`
	Contract *contractResponse `json:"contract,omitempty"`
}

type completeResponse struct {
	Transfer            transferResponse   `json:"transfer"`
	TerminatedContracts []contractResponse `json:"terminatedContracts"`
	Contract            *contractResponse  `json:"contract,omitempty"`
}

func parseUUID(field, v string) (uuid.UUID, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, invalidField(field, "a UUID")
	}
	return id, nil
}

func parseOptionalUUID(field string, v *string) (*uuid.UUID, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	id, err := parseUUID(field, *v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. A blank value
// yields the zero time.
func parseDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, invalidField(field, "a date formatted YYYY-MM-DD")
	}
	return models.Date(t), nil
}

func parseOptionalDate(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(field string, v *string) (*decimal.Decimal, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*v))
	if err != nil {
		return nil, invalidField(field, "a decimal string")
	}
	return &d, nil
}

func parseSalary(v *string) (decimal.NullDecimal, error) {
	d, err := parseDecimal("salary", v)
	if err != nil || d == nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(*d), nil
}

func (req *createContractRequest) toInput() (controller.ContractInput, error) {
	var (
		in  controller.ContractInput
		err error
	)
	if in.EmployeeID, err = parseUUID("employeeId", req.EmployeeID); err != nil {
		return in, err
	}
	if in.ClientID, err = parseOptionalUUID("clientId", req.ClientID); err != nil {
		return in, err
	}
	if in.StartDate, err = parseDate("startDate", req.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = parseOptionalDate("endDate", req.EndDate); err != nil {
		return in, err
	}
	if in.Salary, err = parseSalary(req.Salary); err != nil {
		return in, err
	}
	in.Type = models.ContractType(strings.ToUpper(strings.TrimSpace(req.Type)))
	in.Position = req.Position
	in.WorkingHours = req.WorkingHours
	in.Notes = req.Notes
	in.AlertThreshold = req.AlertThreshold
	return in, nil
}

func (req *updateContractRequest) toPatch() (models.ContractUpdate, error) {
	var (
		patch models.ContractUpdate
		err   error
	)
	if req.Type != nil {
		t := models.ContractType(strings.ToUpper(strings.TrimSpace(*req.Type)))
		patch.Type = &t
	}
	if req.StartDate != nil {
		start, err := parseDate("startDate", *req.StartDate)
		if err != nil {
			return patch, err
		}
		patch.StartDate = &start
	}
	if req.EndDate.Set {
		if req.EndDate.Value == nil {
			patch.ClearEndDate = true
		} else if patch.EndDate, err = parseOptionalDate("endDate", req.EndDate.Value); err != nil {
			return patch, err
		}
	}
	if patch.Salary, err = parseDecimal("salary", req.Salary); err != nil {
		return patch, err
	}
	patch.Position = req.Position
	patch.WorkingHours = req.WorkingHours
	patch.Notes = req.Notes
	patch.AlertThreshold = req.AlertThreshold
	return patch, nil
}

func (req *renewContractRequest) toInput() (controller.RenewInput, error) {
	var (
		in  controller.RenewInput
		err error
	)
	if in.StartDate, err = parseDate("startDate", req.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = parseOptionalDate("endDate", req.EndDate); err != nil {
		return in, err
	}
	if in.Salary, err = parseDecimal("salary", req.Salary); err != nil {
		return in, err
	}
	in.Position = req.Position
	in.WorkingHours = req.WorkingHours
	in.Notes = req.Notes
	in.AlertThreshold = req.AlertThreshold
	return in, nil
}

func (req *transferRequest) toInput() (controller.TransferInput, error) {
	var (
		in  controller.TransferInput
		err error
	)
	if in.EmployeeID, err = parseUUID("employeeId", req.EmployeeID); err != nil {
		return in, err
	}
	if in.ToFirmID, err = parseUUID("toFirmId", req.ToFirmID); err != nil {
		return in, err
	}
	if in.ClientID, err = parseOptionalUUID("clientId", req.ClientID); err != nil {
		return in, err
	}
	if req.TransferDate != nil {
		if in.TransferDate, err = parseDate("transferDate", *req.TransferDate); err != nil {
			return in, err
		}
	}
	if in.EffectiveDate, err = parseDate("effectiveDate", req.EffectiveDate); err != nil {
		return in, err
	}
	in.Reason = req.Reason
	in.Notes = req.Notes
	return in, nil
}

func (req *updateTransferRequest) toPatch() (models.TransferUpdate, error) {
	var (
		patch models.TransferUpdate
		err   error
	)
	if patch.TransferDate, err = parseOptionalDate("transferDate", req.TransferDate); err != nil {
		return patch, err
	}
	if patch.EffectiveDate, err = parseOptionalDate("effectiveDate", req.EffectiveDate); err != nil {
		return patch, err
	}
	if req.ClientID.Set {
		if req.ClientID.Value == nil {
			patch.ClearClient = true
		} else if patch.ClientID, err = parseOptionalUUID("clientId", req.ClientID.Value); err != nil {
			return patch, err
		}
	}
	patch.Reason = req.Reason
	patch.Notes = req.Notes
	return patch, nil
}

// toSeed returns the destination contract requested with an approval, or nil.
func (req *approveTransferRequest) toSeed() (*models.ContractSeed, error) {
	if !req.CreateNewContract || req.ContractData == nil {
		return nil, nil
	}
	data := req.ContractData
	seed := &models.ContractSeed{
		Type:         models.ContractType(strings.ToUpper(strings.TrimSpace(data.Type))),
		Position:     data.Position,
		WorkingHours: data.WorkingHours,
		Notes:        data.Notes,
	}
	var err error
	if seed.StartDate, err = parseDate("contractData.startDate", data.StartDate); err != nil {
		return nil, err
	}
	if seed.EndDate, err = parseOptionalDate("contractData.endDate", data.EndDate); err != nil {
		return nil, err
	}
	if seed.Salary, err = parseSalary(data.Salary); err != nil {
		return nil, err
	}
	if data.AlertThreshold != nil {
		seed.AlertThreshold = *data.AlertThreshold
	}
	return seed, nil
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func toContractResponse(c *models.Contract, now time.Time) contractResponse {
	resp := contractResponse{
		ID:                c.ID,
		FirmID:            c.FirmID,
		EmployeeID:        c.EmployeeID,
		ClientID:          c.ClientID,
		Type:              string(c.Type),
		Status:            string(c.Status),
		StartDate:         formatDate(c.StartDate),
		EndDate:           formatDatePtr(c.EndDate),
		Position:          c.Position,
		WorkingHours:      c.WorkingHours,
		Notes:             c.Notes,
		RenewedFromID:     c.RenewedFromID,
		IsActive:          c.IsActive,
		AlertThreshold:    c.AlertThreshold,
		TerminationDate:   formatDatePtr(c.TerminationDate),
		TerminationReason: c.TerminationReason,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		IsExpired:         c.IsExpired(now),
		ExpiresSoon:       c.ExpiresSoon(now),
		DaysUntilExpiry:   c.DaysUntilExpiry(now),
	}
	if c.Salary.Valid {
		s := c.Salary.Decimal.StringFixed(2)
		resp.Salary = &s
	}
	return resp
}

func toContractResponses(contracts []*models.Contract, now time.Time) []contractResponse {
	out := make([]contractResponse, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, toContractResponse(c, now))
	}
	return out
}

func toEligibilityResponse(r eligibility.Result) eligibilityResponse {
	return eligibilityResponse{
		IsEligible:              r.IsEligible,
		Reason:                  r.Reason,
		Message:                 r.Message,
		CurrentDurationMonths:   r.CurrentDurationMonths,
		CurrentCumulativeMonths: r.CurrentCumulativeMonths,
		NewDurationMonths:       r.NewDurationMonths,
		AvailableMonths:         r.AvailableMonths,
		RemainingMonths:         r.RemainingMonths,
	}
}

func toTransferResponse(t *models.Transfer) transferResponse {
	return transferResponse{
		ID:              t.ID,
		EmployeeID:      t.EmployeeID,
		FromFirmID:      t.FromFirmID,
		ToFirmID:        t.ToFirmID,
		ClientID:        t.ClientID,
		TransferDate:    formatDate(t.TransferDate),
		EffectiveDate:   formatDate(t.EffectiveDate),
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
		ContractPending: t.ContractSeed != nil && t.Status == models.TransferApproved,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
