package domain

import "time"

// Organization is the tenant boundary. Every other entity belongs to exactly one.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	LogoURL   *string   `json:"logo_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationPatch holds optional organization field changes.
// The slug is validated and normalized by the caller before Apply.
type OrganizationPatch struct {
	Name    Optional[string] `json:"name"`
	Slug    Optional[string] `json:"slug"`
	LogoURL Optional[string] `json:"logo_url"`
}

// Apply merges the patch into the organization. Nothing is changed when the patch is invalid.
func (o *Organization) Apply(p OrganizationPatch, now time.Time) error {
	next := *o
	if err := applyRequiredString("name", p.Name, &next.Name, 255); err != nil {
		return err
	}
	if err := applyRequiredString("slug", p.Slug, &next.Slug, 100); err != nil {
		return err
	}
	applyNullable(p.LogoURL, &next.LogoURL)
	next.UpdatedAt = now
	*o = next
	return nil
}
