// Package postgres provides PostgreSQL implementation of the organizations repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/organizations"
	pg "github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	slugConstraint     = "organizations_slug_key"
	teamNameConstraint = "teams_organization_id_name_key"
	memberConstraint   = "team_members_pkey"
)

// Repository implements organizations.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const organizationColumns = `o.id, o.name, o.slug, o.logo_url, o.created_at, o.updated_at`

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var org domain.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.LogoURL, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *Repository) getOrganization(ctx context.Context, where string, arg string) (*domain.Organization, error) {
	org, err := scanOrganization(r.db.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations o WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organizations.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// GetOrganization retrieves an organization by id.
func (r *Repository) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	return r.getOrganization(ctx, "o.id = $1", id)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (r *Repository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return r.getOrganization(ctx, "o.slug = $1", slug)
}

func organizationWhere(filter organizations.OrganizationFilter) (string, []interface{}) {
	if filter.MemberID == "" {
		return "", nil
	}
	where := ` WHERE EXISTS (
		SELECT 1 FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE t.organization_id = o.id AND tm.user_id = $1
	)`
	return where, []interface{}{filter.MemberID}
}

// ListOrganizations retrieves organizations ordered by name.
func (r *Repository) ListOrganizations(ctx context.Context, filter organizations.OrganizationFilter) ([]domain.Organization, error) {
	where, args := organizationWhere(filter)
	query := `SELECT ` + organizationColumns + ` FROM organizations o` + where + ` ORDER BY o.name, o.id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Organization, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		result = append(result, *org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}

	return result, nil
}

// CountOrganizations counts organizations matching the filter.
func (r *Repository) CountOrganizations(ctx context.Context, filter organizations.OrganizationFilter) (int, error) {
	where, args := organizationWhere(filter)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM organizations o`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count organizations: %w", err)
	}
	return count, nil
}

// UpdateOrganization updates the mutable organization fields.
func (r *Repository) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, logo_url = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, org.ID, org.Name, org.Slug, org.LogoURL).Scan(&org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organizations.ErrOrganizationNotFound
		}
		if pg.IsUniqueViolation(err, slugConstraint) {
			return organizations.ErrSlugTaken
		}
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

// DeleteOrganization deletes an organization. Owned rows cascade.
func (r *Repository) DeleteOrganization(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organizations.ErrOrganizationNotFound
	}
	return nil
}

// MemberRole returns admin when the user is an admin of any team of the
// organization, member when it only holds member roles.
func (r *Repository) MemberRole(ctx context.Context, orgID, userID string) (domain.TeamRole, error) {
	query := `
		SELECT tm.role
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE t.organization_id = $1 AND tm.user_id = $2
		ORDER BY (tm.role = 'admin') DESC
		LIMIT 1
	`
	var role domain.TeamRole
	if err := r.db.QueryRow(ctx, query, orgID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", organizations.ErrNotMember
		}
		return "", fmt.Errorf("get member role: %w", err)
	}
	return role, nil
}

const teamColumns = `id, organization_id, name, description, created_at, updated_at`

// GetTeam retrieves a team by id.
func (r *Repository) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	err := r.db.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organizations.ErrTeamNotFound
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

// ListTeams retrieves the teams of an organization ordered by name.
func (r *Repository) ListTeams(ctx context.Context, orgID string) ([]domain.Team, error) {
	rows, err := r.db.Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Team])
	if err != nil {
		return nil, fmt.Errorf("collect teams: %w", err)
	}
	return teams, nil
}

func createTeam(ctx context.Context, q pg.Querier, t *domain.Team) error {
	query := `
		INSERT INTO teams (organization_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(ctx, query, t.OrganizationID, t.Name, t.Description).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err, teamNameConstraint) {
			return organizations.ErrTeamNameTaken
		}
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// CreateTeam inserts a team.
func (r *Repository) CreateTeam(ctx context.Context, t *domain.Team) error {
	return createTeam(ctx, r.db, t)
}

// UpdateTeam updates the mutable team fields.
func (r *Repository) UpdateTeam(ctx context.Context, t *domain.Team) error {
	query := `
		UPDATE teams SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.db.QueryRow(ctx, query, t.ID, t.Name, t.Description).Scan(&t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organizations.ErrTeamNotFound
		}
		if pg.IsUniqueViolation(err, teamNameConstraint) {
			return organizations.ErrTeamNameTaken
		}
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// DeleteTeamTx deletes a team within a transaction. Memberships cascade.
func (r *Repository) DeleteTeamTx(ctx context.Context, tx pgx.Tx, id string) error {
	result, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organizations.ErrTeamNotFound
	}
	return nil
}

// ListMembers retrieves team members, admins first.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	query := `
		SELECT team_id, user_id, role, created_at, updated_at
		FROM team_members
		WHERE team_id = $1
		ORDER BY (role = 'admin') DESC, created_at
	`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TeamMember])
	if err != nil {
		return nil, fmt.Errorf("collect members: %w", err)
	}
	return members, nil
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateOrganizationTx inserts an organization within a transaction.
func (r *Repository) CreateOrganizationTx(ctx context.Context, tx pgx.Tx, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (name, slug, logo_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query, org.Name, org.Slug, org.LogoURL).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err, slugConstraint) {
			return organizations.ErrSlugTaken
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// CreateTeamTx inserts a team within a transaction.
func (r *Repository) CreateTeamTx(ctx context.Context, tx pgx.Tx, t *domain.Team) error {
	return createTeam(ctx, tx, t)
}

// AddMemberTx inserts a team membership within a transaction.
func (r *Repository) AddMemberTx(ctx context.Context, tx pgx.Tx, m *domain.TeamMember) error {
	query := `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRow(ctx, query, m.TeamID, m.UserID, m.Role).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err, memberConstraint) {
			return organizations.ErrMemberExists
		}
		if pg.IsForeignKeyViolation(err) {
			return organizations.ErrUserNotFound
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// GetMemberForUpdateTx loads a membership and locks its row.
func (r *Repository) GetMemberForUpdateTx(ctx context.Context, tx pgx.Tx, teamID, userID string) (*domain.TeamMember, error) {
	query := `
		SELECT team_id, user_id, role, created_at, updated_at
		FROM team_members
		WHERE team_id = $1 AND user_id = $2
		FOR UPDATE
	`
	var m domain.TeamMember
	err := tx.QueryRow(ctx, query, teamID, userID).Scan(&m.TeamID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organizations.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// CountAdminsForUpdateTx counts team admins and locks their rows so two
// concurrent demotions cannot both pass the last-admin check.
func (r *Repository) CountAdminsForUpdateTx(ctx context.Context, tx pgx.Tx, teamID string) (int, error) {
	rows, err := tx.Query(ctx, `SELECT user_id FROM team_members WHERE team_id = $1 AND role = 'admin' FOR UPDATE`, teamID)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("collect admins: %w", err)
	}
	return len(ids), nil
}

// CountOtherAdminsForUpdateTx counts admin memberships in the organization's
// other teams and locks them, so two teams cannot be deleted concurrently
// past the last admin.
func (r *Repository) CountOtherAdminsForUpdateTx(ctx context.Context, tx pgx.Tx, orgID, teamID string) (int, error) {
	query := `
		SELECT tm.user_id
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE t.organization_id = $1 AND tm.team_id <> $2 AND tm.role = 'admin'
		FOR UPDATE OF tm
	`
	rows, err := tx.Query(ctx, query, orgID, teamID)
	if err != nil {
		return 0, fmt.Errorf("count other admins: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("collect other admins: %w", err)
	}
	return len(ids), nil
}

// UpdateMemberRoleTx changes a member role within a transaction.
func (r *Repository) UpdateMemberRoleTx(ctx context.Context, tx pgx.Tx, m *domain.TeamMember) error {
	query := `
		UPDATE team_members SET role = $3, updated_at = NOW()
		WHERE team_id = $1 AND user_id = $2
		RETURNING updated_at
	`
	if err := tx.QueryRow(ctx, query, m.TeamID, m.UserID, m.Role).Scan(&m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organizations.ErrMemberNotFound
		}
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

// RemoveMemberTx deletes a membership within a transaction.
func (r *Repository) RemoveMemberTx(ctx context.Context, tx pgx.Tx, teamID, userID string) error {
	result, err := tx.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organizations.ErrMemberNotFound
	}
	return nil
}
