package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gartstein/staffing/internal/pkg/utils"
	"github.com/gartstein/staffing/internal/staffing/auth"
	"github.com/gartstein/staffing/internal/staffing/controller"
	"github.com/gartstein/staffing/internal/staffing/db"
	"github.com/gartstein/staffing/internal/staffing/db/dbtest"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/events"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type recordingProducer struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingProducer) Produce(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingProducer) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// auditSpy records the audit entries that reached the database and can be
// told to fail the write.
type auditSpy struct {
	*db.Repository

	mu      sync.Mutex
	entries []*models.AuditEntry
	err     error
}

func (a *auditSpy) RecordAudit(ctx context.Context, entry *models.AuditEntry) error {
	if a.err != nil {
		return a.err
	}
	if err := a.Repository.RecordAudit(ctx, entry); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditSpy) actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditAction, 0, len(a.entries))
	for _, entry := range a.entries {
		out = append(out, entry.Action)
	}
	return out
}

func (a *auditSpy) last() *models.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return nil
	}
	return a.entries[len(a.entries)-1]
}

type testEnv struct {
	repo      *db.Repository
	audit     *auditSpy
	fx        *dbtest.Fixture
	clock     *testClock
	producer  *recordingProducer
	contracts *controller.ContractService
	transfers *controller.TransferService
}

func newEnv(t *testing.T, opts ...controller.Option) *testEnv {
	t.Helper()

	repo := dbtest.NewRepository(t)
	env := &testEnv{
		repo:     repo,
		audit:    &auditSpy{Repository: repo},
		fx:       dbtest.Seed(t, repo),
		clock:    &testClock{now: day("2024-06-01").Add(9 * time.Hour)},
		producer: &recordingProducer{},
	}
	logger := zaptest.NewLogger(t)
	guard := auth.NewGuard(repo, logger)
	opts = append([]controller.Option{controller.WithClock(env.clock)}, opts...)

	env.contracts = controller.NewContractService(env.audit, guard, env.producer, logger, opts...)
	env.transfers = controller.NewTransferService(env.audit, guard, env.producer, logger, opts...)
	return env
}

func (env *testEnv) userA(role models.Role) uuid.UUID { return env.fx.UsersA[role] }

func (env *testEnv) userB(role models.Role) uuid.UUID { return env.fx.UsersB[role] }

// insertContract stores a contract for the fixture employee directly,
// bypassing the service.
func (env *testEnv) insertContract(t *testing.T, typ models.ContractType, status models.ContractStatus, start, end string) *models.Contract {
	t.Helper()

	c := &models.Contract{
		FirmID:         env.fx.FirmA.ID,
		EmployeeID:     env.fx.Employee.ID,
		ClientID:       utils.Ptr(env.fx.ClientA.ID),
		Type:           typ,
		Status:         status,
		StartDate:      day(start),
		Position:       "Developer",
		Salary:         decimal.NewNullDecimal(decimal.RequireFromString("3150.50")),
		IsActive:       status == models.ContractActive,
		AlertThreshold: models.DefaultAlertThreshold,
		CreatedBy:      env.userA(models.RoleManager),
	}
	if end != "" {
		c.EndDate = utils.Ptr(day(end))
	}
	require.NoError(t, env.repo.InsertContract(context.Background(), c))
	return c
}

// requireRule asserts err belongs to kind and carries reason.
func requireRule(t *testing.T, err error, kind error, reason string) *e.RuleError {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	rule, ok := e.AsRule(err)
	require.True(t, ok, "expected a rule error, got %v", err)
	assert.Equal(t, reason, rule.Reason)
	return rule
}
