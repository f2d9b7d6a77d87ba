package incidents

import "errors"

// Incident errors.
var (
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrServiceNotAttached = errors.New("service is not affected by this incident")
	ErrEmptyUpdate        = errors.New("update requires a status or a message")
)
