package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/modgate/modgate/pkg/model"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Create(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

// GroupsFor returns the roles and teams an actor belongs to.
func (r *MembershipRepository) GroupsFor(ctx context.Context, actorID string) (roles []string, teams []string, err error) {
	var memberships []model.Membership
	if err := r.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Find(&memberships).Error; err != nil {
		return nil, nil, err
	}

	for _, m := range memberships {
		switch m.Kind {
		case model.MembershipRole:
			roles = append(roles, m.Ref)
		case model.MembershipTeam:
			teams = append(teams, m.Ref)
		}
	}
	return roles, teams, nil
}

// MembersOf expands a role or team reference into its actor ids.
func (r *MembershipRepository) MembersOf(ctx context.Context, kind model.MembershipKind, ref string) ([]string, error) {
	var actorIDs []string
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("kind = ? AND ref = ?", kind, ref).
		Pluck("actor_id", &actorIDs).Error
	return actorIDs, err
}
