package maintenances

import "errors"

// Maintenance errors.
var (
	ErrMaintenanceNotFound = errors.New("maintenance not found")
	ErrServiceNotAttached  = errors.New("service not attached to maintenance")
	ErrCommentNotFound     = errors.New("comment not found")
	ErrNotCommentAuthor    = errors.New("only the author can delete a comment")
)
