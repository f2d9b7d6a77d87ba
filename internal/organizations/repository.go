package organizations

import (
	"context"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for organization and team storage.
type Repository interface {
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]domain.Organization, error)
	CountOrganizations(ctx context.Context, filter OrganizationFilter) (int, error)
	UpdateOrganization(ctx context.Context, org *domain.Organization) error
	DeleteOrganization(ctx context.Context, id string) error

	// MemberRole returns the strongest team role the user holds in the
	// organization, or ErrNotMember.
	MemberRole(ctx context.Context, orgID, userID string) (domain.TeamRole, error)

	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	ListTeams(ctx context.Context, orgID string) ([]domain.Team, error)
	CreateTeam(ctx context.Context, team *domain.Team) error
	UpdateTeam(ctx context.Context, team *domain.Team) error

	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateOrganizationTx(ctx context.Context, tx pgx.Tx, org *domain.Organization) error
	CreateTeamTx(ctx context.Context, tx pgx.Tx, team *domain.Team) error
	AddMemberTx(ctx context.Context, tx pgx.Tx, member *domain.TeamMember) error
	GetMemberForUpdateTx(ctx context.Context, tx pgx.Tx, teamID, userID string) (*domain.TeamMember, error)
	CountAdminsForUpdateTx(ctx context.Context, tx pgx.Tx, teamID string) (int, error)
	// CountOtherAdminsForUpdateTx counts admin memberships in the
	// organization's teams other than teamID.
	CountOtherAdminsForUpdateTx(ctx context.Context, tx pgx.Tx, orgID, teamID string) (int, error)
	DeleteTeamTx(ctx context.Context, tx pgx.Tx, id string) error
	UpdateMemberRoleTx(ctx context.Context, tx pgx.Tx, member *domain.TeamMember) error
	RemoveMemberTx(ctx context.Context, tx pgx.Tx, teamID, userID string) error
}

// OrganizationFilter holds filter options for listing organizations.
type OrganizationFilter struct {
	// MemberID restricts the list to organizations the user belongs to.
	// Empty lists every organization.
	MemberID string
	Limit    int
	Offset   int
}
