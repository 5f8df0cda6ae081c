package version

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a game version.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusUploaded     Status = "uploaded"
	StatusQCProcessing Status = "qc_processing"
	StatusQCPassed     Status = "qc_passed"
	StatusQCFailed     Status = "qc_failed"
	StatusApproved     Status = "approved"
	StatusPublished    Status = "published"
	StatusArchived     Status = "archived"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusDraft,
		StatusUploaded,
		StatusQCProcessing,
		StatusQCPassed,
		StatusQCFailed,
		StatusApproved,
		StatusPublished,
		StatusArchived,
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUploaded, StatusQCProcessing, StatusQCPassed,
		StatusQCFailed, StatusApproved, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// IsActive reports whether the version can still be archived.
func (s Status) IsActive() bool {
	return s.Valid() && s != StatusArchived
}

func (s Status) String() string { return string(s) }

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Role is a permission role of the acting user relative to a version.
type Role string

const (
	// RoleOwner is derived by callers when the acting user owns the game.
	RoleOwner     Role = "owner"
	RoleDeveloper Role = "developer"
	RoleQC        Role = "qc"
	RoleCTO       Role = "cto"
	RoleCEO       Role = "ceo"
	RoleAdmin     Role = "admin"
)

func AllRoles() []Role {
	return []Role{RoleOwner, RoleDeveloper, RoleQC, RoleCTO, RoleCEO, RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleDeveloper, RoleQC, RoleCTO, RoleCEO, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return r, nil
}

// ParseRoles parses a role list, skipping blanks and duplicates.
func ParseRoles(raw []string) ([]Role, error) {
	out := make([]Role, 0, len(raw))
	seen := make(map[Role]struct{}, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item) == "" {
			continue
		}
		role, err := ParseRole(item)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out, nil
}

func HasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// Action is a lifecycle action requested against a version.
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionStartReview Action = "start_review"
	ActionRecordPass  Action = "record_pass"
	ActionRecordFail  Action = "record_fail"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionPublish     Action = "publish"
	ActionArchive     Action = "archive"
)

func AllActions() []Action {
	return []Action{
		ActionSubmit,
		ActionStartReview,
		ActionRecordPass,
		ActionRecordFail,
		ActionApprove,
		ActionReject,
		ActionPublish,
		ActionArchive,
	}
}

func (a Action) Valid() bool {
	switch a {
	case ActionSubmit, ActionStartReview, ActionRecordPass, ActionRecordFail,
		ActionApprove, ActionReject, ActionPublish, ActionArchive:
		return true
	default:
		return false
	}
}

func (a Action) String() string { return string(a) }

func ParseAction(raw string) (Action, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	a := Action(normalized)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
	return a, nil
}
