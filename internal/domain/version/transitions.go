package version

var (
	ownerOnly     = []Role{RoleOwner}
	reviewerRoles = []Role{RoleQC, RoleAdmin}
	approverRoles = []Role{RoleCTO, RoleCEO, RoleAdmin}
	adminOnly     = []Role{RoleAdmin}
)

// rule resolves the target status and the roles allowed to perform action from status.
// ok is false when the pair is not part of the lifecycle.
func rule(from Status, action Action) (to Status, roles []Role, ok bool) {
	if !from.Valid() {
		return "", nil, false
	}

	switch action {
	case ActionSubmit:
		if from == StatusDraft || from == StatusQCFailed {
			return StatusUploaded, ownerOnly, true
		}
	case ActionStartReview:
		if from == StatusUploaded {
			return StatusQCProcessing, reviewerRoles, true
		}
	case ActionRecordPass:
		if from == StatusQCProcessing {
			return StatusQCPassed, reviewerRoles, true
		}
	case ActionRecordFail:
		if from == StatusQCProcessing {
			return StatusQCFailed, reviewerRoles, true
		}
	case ActionApprove:
		if from == StatusQCPassed {
			return StatusApproved, approverRoles, true
		}
	case ActionReject:
		if from == StatusQCPassed {
			return StatusQCFailed, approverRoles, true
		}
	case ActionPublish:
		if from == StatusApproved {
			return StatusPublished, adminOnly, true
		}
	case ActionArchive:
		if from.IsActive() {
			return StatusArchived, adminOnly, true
		}
	}
	return "", nil, false
}

// AttemptTransition returns the status reached by applying action as role, or an
// *InvalidTransitionError when the combination is not in the lifecycle table.
func AttemptTransition(current Status, action Action, role Role) (Status, error) {
	reject := &InvalidTransitionError{From: current, Action: action, Role: role}
	if !role.Valid() || !action.Valid() {
		return current, reject
	}

	to, roles, ok := rule(current, action)
	if !ok || !HasRole(roles, role) {
		return current, reject
	}
	return to, nil
}

// AttemptTransitionAny tries each role in order and returns the first success.
// With no roles the result is a rejection attributed to RoleDeveloper.
func AttemptTransitionAny(current Status, action Action, roles []Role) (Status, Role, error) {
	if len(roles) == 0 {
		_, err := AttemptTransition(current, action, RoleDeveloper)
		return current, RoleDeveloper, err
	}

	var firstErr error
	for _, role := range roles {
		next, err := AttemptTransition(current, action, role)
		if err == nil {
			return next, role, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return current, roles[0], firstErr
}

// AvailableActions lists the actions any of roles may perform from current.
func AvailableActions(current Status, roles []Role) []Action {
	out := make([]Action, 0, 2)
	for _, action := range AllActions() {
		if _, _, err := AttemptTransitionAny(current, action, roles); err == nil {
			out = append(out, action)
		}
	}
	return out
}

// CanEdit reports whether metadata or payload may change. Only draft and qc_failed
// versions are editable, and only by the owning developer or an admin.
func CanEdit(status Status, isOwner bool, isAdmin bool) bool {
	if status != StatusDraft && status != StatusQCFailed {
		return false
	}
	return isOwner || isAdmin
}
