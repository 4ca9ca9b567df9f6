package controller_test

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"

	"github.com/gartstein/staffing/internal/pkg/utils"
	"github.com/gartstein/staffing/internal/staffing/controller"
	"github.com/gartstein/staffing/internal/staffing/db/dbtest"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/events"
	"github.com/gartstein/staffing/internal/staffing/features"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cddInput(env *testEnv) controller.ContractInput {
	return controller.ContractInput{
		EmployeeID: env.fx.Employee.ID,
		ClientID:   utils.Ptr(env.fx.ClientA.ID),
		Type:       models.ContractCDD,
		StartDate:  day("2024-06-01"),
		EndDate:    utils.Ptr(day("2024-12-01")),
		Position:   " Developer ",
		Salary:     decimal.NewNullDecimal(decimal.RequireFromString("3150.50")),
	}
}

func TestCreateContract(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	c, err := env.contracts.CreateContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, cddInput(env))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, models.ContractActive, c.Status)
	assert.True(t, c.IsActive)
	assert.Equal(t, "Developer", c.Position)
	assert.Equal(t, models.DefaultAlertThreshold, c.AlertThreshold)
	assert.Equal(t, env.userA(models.RoleManager), c.CreatedBy)

	stored, err := env.repo.FindContractByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.Salary.Decimal.Equal(decimal.RequireFromString("3150.5")))

	assert.Equal(t, []models.AuditAction{models.AuditCreate}, env.audit.actions())
	assert.Equal(t, []events.EventType{events.ContractCreated}, env.producer.types())
}

func TestCreateContract_DefaultAlertThresholdOption(t *testing.T) {
	env := newEnv(t, controller.WithDefaultAlertThreshold(45))

	c, err := env.contracts.CreateContract(context.Background(), env.userA(models.RoleManager), env.fx.FirmA.ID, cddInput(env))
	require.NoError(t, err)
	assert.Equal(t, 45, c.AlertThreshold)
}

func TestCreateContract_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(env *testEnv, in *controller.ContractInput)
		kind   error
		reason string
	}{
		{
			name:   "missing employee",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.EmployeeID = uuid.Nil },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonMissingField,
		},
		{
			name:   "missing start date",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.StartDate = day("0001-01-01") },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonMissingField,
		},
		{
			name:   "unknown type",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.Type = "FREELANCE" },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonInvalidContractType,
		},
		{
			name:   "fixed term without end date",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.EndDate = nil },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonEndDateRequired,
		},
		{
			name: "internship without end date",
			modify: func(_ *testEnv, in *controller.ContractInput) {
				in.Type = models.ContractStage
				in.EndDate = nil
			},
			kind:   e.ErrInvalidInput,
			reason: e.ReasonEndDateRequired,
		},
		{
			name:   "end before start",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.EndDate = utils.Ptr(day("2024-05-01")) },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonInvalidDateRange,
		},
		{
			name:   "negative alert threshold",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.AlertThreshold = utils.Ptr(-1) },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonInvalidField,
		},
		{
			name:   "client of another firm",
			modify: func(env *testEnv, in *controller.ContractInput) { in.ClientID = utils.Ptr(env.fx.ClientB.ID) },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonClientNotInFirm,
		},
		{
			name:   "unknown client",
			modify: func(_ *testEnv, in *controller.ContractInput) { in.ClientID = utils.Ptr(uuid.New()) },
			kind:   e.ErrInvalidInput,
			reason: e.ReasonClientNotInFirm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			in := cddInput(env)
			tt.modify(env, &in)

			_, err := env.contracts.CreateContract(context.Background(), env.userA(models.RoleManager), env.fx.FirmA.ID, in)
			requireRule(t, err, tt.kind, tt.reason)
			assert.Empty(t, env.audit.actions())
			assert.Empty(t, env.producer.types())
		})
	}
}

func TestCreateContract_EmployeeOfAnotherFirm(t *testing.T) {
	env := newEnv(t)
	other := dbtest.AddEmployee(t, env.repo, env.fx.FirmB.ID)

	in := cddInput(env)
	in.EmployeeID = other.ID
	in.ClientID = nil

	_, err := env.contracts.CreateContract(context.Background(), env.userA(models.RoleManager), env.fx.FirmA.ID, in)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestCreateContract_ActiveContractExists(t *testing.T) {
	env := newEnv(t)
	existing := env.insertContract(t, models.ContractCDI, models.ContractActive, "2023-01-01", "")

	_, err := env.contracts.CreateContract(context.Background(), env.userA(models.RoleManager), env.fx.FirmA.ID, cddInput(env))
	rule := requireRule(t, err, e.ErrBusinessRule, e.ReasonActiveContractExists)
	assert.Equal(t, existing.ID.String(), rule.Details["activeContractId"])
}

func TestCreateContract_Concurrent(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.contracts.CreateContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, cddInput(env))
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, e.ErrBusinessRule) || errors.Is(err, e.ErrConflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	active, err := env.repo.FindActiveContractsByEmployee(ctx, env.fx.Employee.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestContractAccess(t *testing.T) {
	tests := []struct {
		name   string
		actor  func(env *testEnv) uuid.UUID
		opts   []controller.Option
		kind   error
		reason string
	}{
		{
			name:  "anonymous caller",
			actor: func(*testEnv) uuid.UUID { return uuid.Nil },
			kind:  e.ErrUnauthenticated,
		},
		{
			name:   "member of another firm",
			actor:  func(env *testEnv) uuid.UUID { return env.fx.Outsider },
			kind:   e.ErrForbidden,
			reason: e.ReasonNotMember,
		},
		{
			name:   "role below manager",
			actor:  func(env *testEnv) uuid.UUID { return env.userA(models.RoleStaff) },
			kind:   e.ErrForbidden,
			reason: e.ReasonInsufficientRole,
		},
		{
			name:   "module disabled",
			actor:  func(env *testEnv) uuid.UUID { return env.userA(models.RoleOwner) },
			opts:   []controller.Option{controller.WithFeatures(features.NewSnapshot([]features.Module{features.ModuleContracts}, nil))},
			kind:   e.ErrForbidden,
			reason: e.ReasonModuleDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, tt.opts...)

			_, err := env.contracts.CreateContract(context.Background(), tt.actor(env), env.fx.FirmA.ID, cddInput(env))
			require.ErrorIs(t, err, tt.kind)
			if tt.reason != "" {
				requireRule(t, err, tt.kind, tt.reason)
			}
			assert.Empty(t, env.audit.actions())
		})
	}
}

func TestGetContract_TenantIsolation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	got, err := env.contracts.GetContract(ctx, env.userA(models.RoleViewer), env.fx.FirmA.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = env.contracts.GetContract(ctx, env.userB(models.RoleOwner), env.fx.FirmB.ID, c.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	_, err = env.contracts.GetContract(ctx, env.userB(models.RoleOwner), env.fx.FirmA.ID, c.ID)
	requireRule(t, err, e.ErrForbidden, e.ReasonNotMember)
}

func TestListContracts(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	viewer := env.userA(models.RoleViewer)

	env.insertContract(t, models.ContractCDD, models.ContractRenewed, "2023-01-01", "2023-06-01")
	env.insertContract(t, models.ContractCDD, models.ContractActive, "2023-06-01", "2023-12-01")

	t.Run("defaults", func(t *testing.T) {
		page, err := env.contracts.ListContracts(ctx, viewer, models.ContractFilter{FirmID: env.fx.FirmA.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, controller.DefaultPageLimit, page.Limit)
		assert.EqualValues(t, 2, page.Total)
		assert.Equal(t, 1, page.TotalPages)
		assert.Len(t, page.Contracts, 2)
	})

	t.Run("limit capped", func(t *testing.T) {
		page, err := env.contracts.ListContracts(ctx, viewer, models.ContractFilter{FirmID: env.fx.FirmA.ID, Limit: 500})
		require.NoError(t, err)
		assert.Equal(t, controller.MaxPageLimit, page.Limit)
	})

	t.Run("one per page", func(t *testing.T) {
		page, err := env.contracts.ListContracts(ctx, viewer, models.ContractFilter{
			FirmID: env.fx.FirmA.ID, SortBy: "startDate", Page: 2, Limit: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Contracts, 1)
		assert.True(t, day("2023-06-01").Equal(page.Contracts[0].StartDate))
	})

	t.Run("status filter", func(t *testing.T) {
		status := models.ContractRenewed
		page, err := env.contracts.ListContracts(ctx, viewer, models.ContractFilter{FirmID: env.fx.FirmA.ID, Status: &status})
		require.NoError(t, err)
		require.Len(t, page.Contracts, 1)
		assert.Equal(t, models.ContractRenewed, page.Contracts[0].Status)
	})

	invalid := []struct {
		name   string
		filter models.ContractFilter
		reason string
	}{
		{"unknown sort column", models.ContractFilter{SortBy: "password"}, e.ReasonInvalidField},
		{"negative page", models.ContractFilter{Page: -1}, e.ReasonInvalidField},
		{"page past the offset range", models.ContractFilter{Page: math.MaxInt, Limit: 50}, e.ReasonInvalidField},
		{"page past the offset range at default limit", models.ContractFilter{Page: math.MaxInt32}, e.ReasonInvalidField},
		{"unknown status", models.ContractFilter{Status: utils.Ptr(models.ContractStatus("DRAFT"))}, e.ReasonInvalidField},
		{"unknown type", models.ContractFilter{Type: utils.Ptr(models.ContractType("GIG"))}, e.ReasonInvalidContractType},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.FirmID = env.fx.FirmA.ID
			_, err := env.contracts.ListContracts(ctx, viewer, tt.filter)
			requireRule(t, err, e.ErrInvalidInput, tt.reason)
		})
	}
}

func TestListEmployeeContracts(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	first := env.insertContract(t, models.ContractCDD, models.ContractRenewed, "2023-01-01", "2023-06-01")
	second := env.insertContract(t, models.ContractCDD, models.ContractActive, "2023-06-01", "2023-12-01")

	history, err := env.contracts.ListEmployeeContracts(ctx, env.userA(models.RoleViewer), env.fx.FirmA.ID, env.fx.Employee.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)

	_, err = env.contracts.ListEmployeeContracts(ctx, env.userB(models.RoleViewer), env.fx.FirmB.ID, env.fx.Employee.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestUpdateContract(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	updated, err := env.contracts.UpdateContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, c.ID, models.ContractUpdate{
		Position: utils.Ptr("Lead developer"),
		Salary:   utils.Ptr(decimal.RequireFromString("3400")),
		EndDate:  utils.Ptr(day("2024-11-01")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lead developer", updated.Position)
	assert.Equal(t, models.ContractActive, updated.Status)

	stored, err := env.repo.FindContractByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, day("2024-11-01").Equal(*stored.EndDate))
	assert.True(t, stored.Salary.Decimal.Equal(decimal.RequireFromString("3400")))

	entry := env.audit.last()
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditUpdate, entry.Action)
	before := entry.Metadata["before"].(map[string]any)
	after := entry.Metadata["after"].(map[string]any)
	assert.Equal(t, "3150.50", before["salary"])
	assert.Equal(t, "3400.00", after["salary"])
	assert.Equal(t, []events.EventType{events.ContractUpdated}, env.producer.types())
}

func TestUpdateContract_RevalidatesInvariants(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	_, err := env.contracts.UpdateContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, c.ID, models.ContractUpdate{ClearEndDate: true})
	requireRule(t, err, e.ErrInvalidInput, e.ReasonEndDateRequired)

	_, err = env.contracts.UpdateContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, c.ID, models.ContractUpdate{
		StartDate: utils.Ptr(day("2024-12-01")),
	})
	requireRule(t, err, e.ErrInvalidInput, e.ReasonInvalidDateRange)

	stored, err := env.repo.FindContractByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, day("2024-01-01").Equal(stored.StartDate))
	assert.Empty(t, env.audit.actions())
}

func TestRenewContract_WithinCap(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	old := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	res, err := env.contracts.RenewContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, old.ID, controller.RenewInput{
		StartDate: day("2024-10-01"),
		EndDate:   utils.Ptr(day("2025-04-01")),
		Notes:     utils.Ptr("second term"),
	})
	require.NoError(t, err)

	assert.True(t, res.Eligibility.IsEligible)
	assert.InDelta(t, 9.13, res.Eligibility.CurrentCumulativeMonths, 0.01)
	assert.InDelta(t, 8.8, res.Eligibility.RemainingMonths, 0.01)

	assert.Equal(t, models.ContractRenewed, res.Previous.Status)
	assert.False(t, res.Previous.IsActive)
	assert.Equal(t, models.ContractActive, res.Contract.Status)
	require.NotNil(t, res.Contract.RenewedFromID)
	assert.Equal(t, old.ID, *res.Contract.RenewedFromID)
	assert.Equal(t, "second term", res.Contract.Notes)
	assert.Equal(t, old.Position, res.Contract.Position)
	assert.Equal(t, *old.ClientID, *res.Contract.ClientID)
	assert.True(t, res.Contract.Salary.Decimal.Equal(old.Salary.Decimal))

	stored, err := env.repo.FindContractByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractRenewed, stored.Status)

	entry := env.audit.last()
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditRenew, entry.Action)
	assert.Equal(t, old.ID.String(), entry.Metadata["previousContractId"])
	assert.Equal(t, res.Contract.ID.String(), entry.Metadata["newContractId"])
	assert.Len(t, env.audit.actions(), 1)
	assert.Equal(t, []events.EventType{events.ContractRenewed}, env.producer.types())
}

func TestRenewContract_CumulativeCapReached(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.insertContract(t, models.ContractCDD, models.ContractRenewed, "2021-01-01", "2021-12-01")
	env.insertContract(t, models.ContractInterim, models.ContractRenewed, "2022-01-01", "2022-12-01")
	current := env.insertContract(t, models.ContractCDD, models.ContractActive, "2023-01-01", "2023-06-01")

	_, err := env.contracts.RenewContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, current.ID, controller.RenewInput{
		StartDate: day("2023-06-01"),
		EndDate:   utils.Ptr(day("2023-07-01")),
	})
	rule := requireRule(t, err, e.ErrBusinessRule, e.ReasonCumulativeCapExceeded)
	remaining, perr := strconv.ParseFloat(rule.Details["remainingMonths"], 64)
	require.NoError(t, perr)
	assert.LessOrEqual(t, remaining, 0.0)

	stored, err := env.repo.FindContractByID(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, stored.Status)
	assert.Empty(t, env.audit.actions())
}

func TestRenewContract_CurrentTooLong(t *testing.T) {
	env := newEnv(t)
	env.clock.now = day("2024-03-01")
	current := env.insertContract(t, models.ContractCDI, models.ContractActive, "2023-01-01", "")

	_, err := env.contracts.RenewContract(context.Background(), env.userA(models.RoleManager), env.fx.FirmA.ID, current.ID, controller.RenewInput{
		StartDate: day("2024-03-01"),
	})
	rule := requireRule(t, err, e.ErrBusinessRule, e.ReasonDurationExceeded)
	assert.Equal(t, "14", rule.Details["currentDurationMonths"])
}

func TestRenewContract_IllegalStates(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	renewed := env.insertContract(t, models.ContractCDD, models.ContractRenewed, "2023-01-01", "2023-06-01")
	terminated := env.insertContract(t, models.ContractCDD, models.ContractTerminated, "2023-06-01", "2023-09-01")

	in := controller.RenewInput{StartDate: day("2024-06-01"), EndDate: utils.Ptr(day("2024-09-01"))}

	_, err := env.contracts.RenewContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, renewed.ID, in)
	requireRule(t, err, e.ErrBusinessRule, e.ReasonIllegalTransition)

	_, err = env.contracts.RenewContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, terminated.ID, in)
	requireRule(t, err, e.ErrBusinessRule, e.ReasonContractNotRenewable)

	_, err = env.contracts.RenewContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, terminated.ID, controller.RenewInput{StartDate: day("2024-06-01")})
	requireRule(t, err, e.ErrInvalidInput, e.ReasonEndDateRequired)
}

func TestRenewContract_AuditFailureRollsBack(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	old := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")
	auditErr := errors.New("audit store unavailable")
	env.audit.err = auditErr

	_, err := env.contracts.RenewContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, old.ID, controller.RenewInput{
		StartDate: day("2024-10-01"),
		EndDate:   utils.Ptr(day("2025-04-01")),
	})
	require.ErrorIs(t, err, auditErr)
	assert.False(t, e.IsKnown(err))

	history, err := env.repo.FindContractsByEmployee(ctx, env.fx.Employee.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ContractActive, history[0].Status)
	assert.Empty(t, env.producer.types())
}

func TestCheckRenewal(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	res, err := env.contracts.CheckRenewal(ctx, env.userA(models.RoleViewer), env.fx.FirmA.ID, c.ID, day("2024-10-01"), utils.Ptr(day("2025-04-01")))
	require.NoError(t, err)
	assert.True(t, res.IsEligible)
	assert.Equal(t, 9, res.CurrentDurationMonths)

	_, err = env.contracts.CheckRenewal(ctx, env.userA(models.RoleViewer), env.fx.FirmA.ID, c.ID, day("2024-10-01"), utils.Ptr(day("2024-09-01")))
	requireRule(t, err, e.ErrInvalidInput, e.ReasonInvalidDateRange)

	stored, err := env.repo.FindContractByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, stored.Status)
	assert.Empty(t, env.audit.actions())
}

func TestTerminateContract(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	_, err := env.contracts.TerminateContract(ctx, env.userA(models.RoleManager), env.fx.FirmA.ID, c.ID, "resignation")
	requireRule(t, err, e.ErrForbidden, e.ReasonInsufficientRole)

	_, err = env.contracts.TerminateContract(ctx, env.userA(models.RoleAdmin), env.fx.FirmA.ID, c.ID, "  ")
	requireRule(t, err, e.ErrInvalidInput, e.ReasonMissingField)

	terminated, err := env.contracts.TerminateContract(ctx, env.userA(models.RoleAdmin), env.fx.FirmA.ID, c.ID, "resignation")
	require.NoError(t, err)
	assert.Equal(t, models.ContractTerminated, terminated.Status)
	assert.False(t, terminated.IsActive)
	require.NotNil(t, terminated.TerminationDate)
	assert.True(t, day("2024-06-01").Equal(*terminated.TerminationDate))
	assert.Equal(t, "resignation", terminated.TerminationReason)

	_, err = env.contracts.TerminateContract(ctx, env.userA(models.RoleAdmin), env.fx.FirmA.ID, c.ID, "again")
	requireRule(t, err, e.ErrBusinessRule, e.ReasonIllegalTransition)

	assert.Equal(t, []models.AuditAction{models.AuditTerminate}, env.audit.actions())
	assert.Equal(t, []events.EventType{events.ContractTerminated}, env.producer.types())
}

func TestDeleteContract(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.insertContract(t, models.ContractCDD, models.ContractActive, "2024-01-01", "2024-10-01")

	err := env.contracts.DeleteContract(ctx, env.userA(models.RoleAdmin), env.fx.FirmA.ID, c.ID)
	requireRule(t, err, e.ErrForbidden, e.ReasonInsufficientRole)

	require.NoError(t, env.contracts.DeleteContract(ctx, env.userA(models.RoleOwner), env.fx.FirmA.ID, c.ID))

	_, err = env.contracts.GetContract(ctx, env.userA(models.RoleOwner), env.fx.FirmA.ID, c.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	entry := env.audit.last()
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditDelete, entry.Action)
	snapshot := entry.Metadata["contract"].(map[string]any)
	assert.Equal(t, c.ID.String(), snapshot["id"])
	assert.Equal(t, "2024-10-01", snapshot["endDate"])
	assert.Equal(t, []events.EventType{events.ContractDeleted}, env.producer.types())
}
