// Package organizations manages tenants, their teams and team membership.
package organizations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

// DefaultTeamName is the team created with every organization. Its first
// member is the creator with the admin role.
const DefaultTeamName = "Owners"

// Service implements organization business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new organization service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateOrganizationInput holds data for creating an organization.
// Slug defaults to the normalized name.
type CreateOrganizationInput struct {
	Name    string
	Slug    string
	LogoURL *string
}

// CreateOrganization creates an organization together with its default team
// and makes the creator an admin of that team.
func (s *Service) CreateOrganization(ctx context.Context, creatorID string, input CreateOrganizationInput) (*domain.Organization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	slugSource := input.Slug
	if strings.TrimSpace(slugSource) == "" {
		slugSource = name
	}
	slug, err := NormalizeSlug(slugSource)
	if err != nil {
		return nil, err
	}

	now := s.now()
	org := &domain.Organization{
		Name:      name,
		Slug:      slug,
		LogoURL:   input.LogoURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	if err := s.repo.CreateOrganizationTx(ctx, tx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	team := &domain.Team{OrganizationID: org.ID, Name: DefaultTeamName}
	if err := s.repo.CreateTeamTx(ctx, tx, team); err != nil {
		return nil, fmt.Errorf("create default team: %w", err)
	}

	member := &domain.TeamMember{TeamID: team.ID, UserID: creatorID, Role: domain.TeamRoleAdmin}
	if err := s.repo.AddMemberTx(ctx, tx, member); err != nil {
		return nil, fmt.Errorf("add creator to default team: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	ctxlog.FromContext(ctx).Info("organization created", "organization_id", org.ID, "slug", org.Slug)
	return org, nil
}

// GetOrganization returns an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	org, err := s.repo.GetOrganization(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// GetOrganizationBySlug returns an organization by its public slug.
func (s *Service) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	org, err := s.repo.GetOrganizationBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return org, nil
}

// ListOrganizations returns the organizations visible to the caller.
// Platform admins see every organization.
func (s *Service) ListOrganizations(ctx context.Context, userID string, role domain.Role, limit, offset int) ([]domain.Organization, int, error) {
	filter := OrganizationFilter{MemberID: userID, Limit: limit, Offset: offset}
	if role.HasPermission(domain.RoleAdmin) {
		filter.MemberID = ""
	}

	list, err := s.repo.ListOrganizations(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	total, err := s.repo.CountOrganizations(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}
	return list, total, nil
}

// UpdateOrganization applies a patch. A new slug is normalized first.
func (s *Service) UpdateOrganization(ctx context.Context, id string, patch domain.OrganizationPatch) (*domain.Organization, error) {
	if patch.Slug.Set && !patch.Slug.Null {
		slug, err := NormalizeSlug(patch.Slug.Value)
		if err != nil {
			return nil, err
		}
		patch.Slug.Value = slug
	}

	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := org.Apply(patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	return org, nil
}

// DeleteOrganization deletes an organization and everything it owns.
func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrganization(ctx, id); err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	ctxlog.FromContext(ctx).Info("organization deleted", "organization_id", id)
	return nil
}

// Authorize checks that the caller may act inside the organization.
// With requireAdmin the caller needs the admin role in one of its teams.
// Platform admins pass both checks.
func (s *Service) Authorize(ctx context.Context, orgID, userID string, role domain.Role, requireAdmin bool) error {
	if role.HasPermission(domain.RoleAdmin) {
		return nil
	}
	teamRole, err := s.repo.MemberRole(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return ErrNotMember
		}
		return fmt.Errorf("get member role: %w", err)
	}
	if requireAdmin && teamRole != domain.TeamRoleAdmin {
		return ErrNotAdmin
	}
	return nil
}

// CreateTeamInput holds data for creating a team.
type CreateTeamInput struct {
	Name        string
	Description string
}

// CreateTeam creates a team in the organization.
func (s *Service) CreateTeam(ctx context.Context, orgID string, input CreateTeamInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	team := &domain.Team{OrganizationID: orgID, Name: name, Description: input.Description}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	return team, nil
}

// GetTeam returns a team of the organization.
func (s *Service) GetTeam(ctx context.Context, orgID, teamID string) (*domain.Team, error) {
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	if team.OrganizationID != orgID {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

// ListTeams returns every team of the organization.
func (s *Service) ListTeams(ctx context.Context, orgID string) ([]domain.Team, error) {
	teams, err := s.repo.ListTeams(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// UpdateTeam applies a patch to a team.
func (s *Service) UpdateTeam(ctx context.Context, orgID, teamID string, patch domain.TeamPatch) (*domain.Team, error) {
	team, err := s.GetTeam(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}
	if err := team.Apply(patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("update team: %w", err)
	}
	return team, nil
}

// DeleteTeam deletes a team and its memberships. A team holding the
// organization's last admins cannot be deleted.
func (s *Service) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	if _, err := s.GetTeam(ctx, orgID, teamID); err != nil {
		return err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	admins, err := s.repo.CountAdminsForUpdateTx(ctx, tx, teamID)
	if err != nil {
		return fmt.Errorf("count team admins: %w", err)
	}
	if admins > 0 {
		others, err := s.repo.CountOtherAdminsForUpdateTx(ctx, tx, orgID, teamID)
		if err != nil {
			return fmt.Errorf("count organization admins: %w", err)
		}
		if others == 0 {
			return ErrLastTeamAdmin
		}
	}

	if err := s.repo.DeleteTeamTx(ctx, tx, teamID); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListMembers returns the members of a team.
func (s *Service) ListMembers(ctx context.Context, orgID, teamID string) ([]domain.TeamMember, error) {
	if _, err := s.GetTeam(ctx, orgID, teamID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// AddMember adds a user to a team.
func (s *Service) AddMember(ctx context.Context, orgID, teamID, userID string, role domain.TeamRole) (*domain.TeamMember, error) {
	if role == "" {
		role = domain.TeamRoleMember
	}
	if !role.IsValid() {
		return nil, &domain.ValidationError{Field: "role", Reason: "unknown role " + string(role)}
	}
	if _, err := s.GetTeam(ctx, orgID, teamID); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	member := &domain.TeamMember{TeamID: teamID, UserID: userID, Role: role}
	if err := s.repo.AddMemberTx(ctx, tx, member); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return member, nil
}

// UpdateMemberRole changes the role of a team member. The last admin of a
// team cannot be demoted.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, teamID, userID string, role domain.TeamRole) (*domain.TeamMember, error) {
	if !role.IsValid() {
		return nil, &domain.ValidationError{Field: "role", Reason: "unknown role " + string(role)}
	}
	if _, err := s.GetTeam(ctx, orgID, teamID); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	member, err := s.repo.GetMemberForUpdateTx(ctx, tx, teamID, userID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member.Role == role {
		return member, nil
	}
	if member.Role == domain.TeamRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, tx, teamID); err != nil {
			return nil, err
		}
	}

	member.Role = role
	if err := s.repo.UpdateMemberRoleTx(ctx, tx, member); err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return member, nil
}

// RemoveMember removes a user from a team. The last admin of a team cannot
// be removed.
func (s *Service) RemoveMember(ctx context.Context, orgID, teamID, userID string) error {
	if _, err := s.GetTeam(ctx, orgID, teamID); err != nil {
		return err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	member, err := s.repo.GetMemberForUpdateTx(ctx, tx, teamID, userID)
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}
	if member.Role == domain.TeamRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, tx, teamID); err != nil {
			return err
		}
	}

	if err := s.repo.RemoveMemberTx(ctx, tx, teamID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Service) ensureAnotherAdmin(ctx context.Context, tx pgx.Tx, teamID string) error {
	admins, err := s.repo.CountAdminsForUpdateTx(ctx, tx, teamID)
	if err != nil {
		return fmt.Errorf("count team admins: %w", err)
	}
	if admins <= 1 {
		return ErrLastTeamAdmin
	}
	return nil
}
