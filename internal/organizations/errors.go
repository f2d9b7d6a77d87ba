package organizations

import "errors"

// Organization errors.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrSlugTaken            = errors.New("organization slug already taken")
	ErrNotMember            = errors.New("not a member of this organization")
	ErrNotAdmin             = errors.New("organization admin role required")
	ErrTeamNotFound         = errors.New("team not found")
	ErrTeamNameTaken        = errors.New("team name already taken")
	ErrMemberNotFound       = errors.New("team member not found")
	ErrMemberExists         = errors.New("user is already a team member")
	ErrUserNotFound         = errors.New("user not found")
	ErrLastTeamAdmin        = errors.New("team must keep at least one admin")
)
