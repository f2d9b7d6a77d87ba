package domain

import "time"

// Comment is a note left by a team member on a maintenance.
type Comment struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	UserID        string    `json:"user_id"`
	MaintenanceID string    `json:"maintenance_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
