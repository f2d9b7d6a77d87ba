package domain

import "time"

type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleMember TeamRole = "member"
)

func (r TeamRole) IsValid() bool {
	return r == TeamRoleAdmin || r == TeamRoleMember
}

type Team struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type TeamPatch struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
}

func (t *Team) Apply(p TeamPatch, now time.Time) error {
	next := *t
	if err := applyRequiredString("name", p.Name, &next.Name, 100); err != nil {
		return err
	}
	applyClearableString(p.Description, &next.Description)
	next.UpdatedAt = now
	*t = next
	return nil
}

type TeamMember struct {
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	Role      TeamRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
