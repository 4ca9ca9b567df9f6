package auth

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MembershipStore reads user-firm memberships.
type MembershipStore interface {
	FindMembership(ctx context.Context, userID, firmID uuid.UUID) (*models.Membership, error)
}

// Guard decides whether a caller may act on a firm's data.
type Guard struct {
	store  MembershipStore
	logger *zap.Logger
}

func NewGuard(store MembershipStore, logger *zap.Logger) *Guard {
	return &Guard{
		store:  store,
		logger: logger.Named("access_guard"),
	}
}

// Authorize returns the caller's membership in firmID. It fails with
// ErrUnauthenticated when there is no caller and ErrForbidden when the caller
// is not a member.
func (g *Guard) Authorize(ctx context.Context, userID, firmID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, e.ErrUnauthenticated
	}
	if firmID == uuid.Nil {
		return nil, e.Denied(e.ReasonNotMember, "firm id is required")
	}

	m, err := g.store.FindMembership(ctx, userID, firmID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			g.logger.Debug("membership not found",
				zap.String("user_id", userID.String()),
				zap.String("firm_id", firmID.String()),
			)
			return nil, e.Denied(e.ReasonNotMember, "caller is not a member of this firm")
		}
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	if m.Role.Rank() == 0 {
		g.logger.Warn("membership carries an unknown role",
			zap.String("user_id", userID.String()),
			zap.String("firm_id", firmID.String()),
			zap.String("role", string(m.Role)),
		)
		return nil, e.Denied(e.ReasonInsufficientRole, "unknown role")
	}
	return m, nil
}

// RequireRole passes when the membership holds one of the allowed roles.
func RequireRole(m *models.Membership, allowed ...models.Role) error {
	if m != nil {
		for _, role := range allowed {
			if m.Role == role {
				return nil
			}
		}
	}
	return e.Denied(e.ReasonInsufficientRole, "role not allowed for this operation")
}

// RequireAtLeast passes when the membership role is floor or more privileged.
func RequireAtLeast(m *models.Membership, floor models.Role) error {
	if m == nil || !m.Role.AtLeast(floor) {
		return e.Denied(e.ReasonInsufficientRole, fmt.Sprintf("requires %s role or higher", floor))
	}
	return nil
}

// Require authorizes the caller on firmID and checks the role floor in one call.
func (g *Guard) Require(ctx context.Context, userID, firmID uuid.UUID, floor models.Role) (*models.Membership, error) {
	m, err := g.Authorize(ctx, userID, firmID)
	if err != nil {
		return nil, err
	}
	if err := RequireAtLeast(m, floor); err != nil {
		return nil, err
	}
	return m, nil
}
