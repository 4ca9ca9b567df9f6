// Package dbtest provides an in-memory SQLite repository and tenant fixtures
// for tests of the packages built on top of db.
package dbtest

import (
	"context"
	"testing"

	"github.com/gartstein/staffing/internal/pkg/utils"
	"github.com/gartstein/staffing/internal/staffing/db"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// NewRepository opens a fresh in-memory database. The pool is pinned to one
// connection so every statement sees the same database.
func NewRepository(t *testing.T) *db.Repository {
	t.Helper()

	repo, err := db.Open(sqlite.Open(":memory:"))
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, repo.SetPoolLimits(1, 1, 0))

	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// Fixture is a small tenant graph: firms A and B share a holding, firm C does
// not. The employee starts in firm A.
type Fixture struct {
	HoldingID uuid.UUID

	FirmA, FirmB, FirmC models.Firm
	ClientA, ClientB    models.Client
	Employee           models.Employee

	// Per-firm users, keyed by role.
	UsersA map[models.Role]uuid.UUID
	UsersB map[models.Role]uuid.UUID
	// Outsider belongs to firm C only.
	Outsider uuid.UUID
}

// Seed writes a Fixture into repo.
func Seed(t *testing.T, repo *db.Repository) *Fixture {
	t.Helper()

	holding := uuid.New()
	f := &Fixture{
		HoldingID: holding,
		FirmA:     models.Firm{ID: uuid.New(), Name: "Firm A", HoldingID: utils.Ptr(holding)},
		FirmB:     models.Firm{ID: uuid.New(), Name: "Firm B", HoldingID: utils.Ptr(holding)},
		FirmC:     models.Firm{ID: uuid.New(), Name: "Firm C", HoldingID: utils.Ptr(uuid.New())},
		UsersA:    map[models.Role]uuid.UUID{},
		UsersB:    map[models.Role]uuid.UUID{},
		Outsider:  uuid.New(),
	}
	f.ClientA = models.Client{ID: uuid.New(), FirmID: f.FirmA.ID, Name: "Client A"}
	f.ClientB = models.Client{ID: uuid.New(), FirmID: f.FirmB.ID, Name: "Client B"}
	f.Employee = models.Employee{
		ID:               uuid.New(),
		FirmID:           f.FirmA.ID,
		AssignedClientID: utils.Ptr(f.ClientA.ID),
		FirstName:        "Jeanne",
		LastName:         "Martin",
	}

	var memberships []models.Membership
	for _, role := range models.Roles() {
		a, b := uuid.New(), uuid.New()
		f.UsersA[role], f.UsersB[role] = a, b
		memberships = append(memberships,
			models.Membership{UserID: a, FirmID: f.FirmA.ID, Role: role},
			models.Membership{UserID: b, FirmID: f.FirmB.ID, Role: role},
		)
	}
	memberships = append(memberships, models.Membership{UserID: f.Outsider, FirmID: f.FirmC.ID, Role: models.RoleOwner})

	err := repo.Seed(context.Background(),
		[]models.Firm{f.FirmA, f.FirmB, f.FirmC},
		[]models.Client{f.ClientA, f.ClientB},
		[]models.Employee{f.Employee},
		memberships,
	)
	require.NoError(t, err, "failed to seed fixture")
	return f
}

// AddEmployee inserts another employee into firm.
func AddEmployee(t *testing.T, repo *db.Repository, firmID uuid.UUID) models.Employee {
	t.Helper()

	emp := models.Employee{ID: uuid.New(), FirmID: firmID, FirstName: "Paul", LastName: "Durand"}
	require.NoError(t, repo.Seed(context.Background(), nil, nil, []models.Employee{emp}, nil))
	return emp
}
