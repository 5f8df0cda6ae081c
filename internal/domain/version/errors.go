package version

import (
	"errors"
	"fmt"

	"gamepub/internal/errs"
)

var (
	ErrInvalidTransition = errs.WithKind(errors.New("action not allowed"), errs.KindInvalidTransition)
	ErrUnknownStatus     = errs.WithKind(errors.New("unknown version status"), errs.KindValidation)
	ErrUnknownRole       = errs.WithKind(errors.New("unknown role"), errs.KindValidation)
	ErrUnknownAction     = errs.WithKind(errors.New("unknown action"), errs.KindValidation)
	ErrSelfQAIncomplete  = errs.WithKind(errors.New("self-QA checklist is incomplete"), errs.KindValidation)
	ErrNotEditable       = errs.WithKind(errors.New("version is not editable"), errs.KindForbidden)
)

// InvalidTransitionError reports a rejected (status, action, role) combination.
// The status is left unchanged by the caller.
type InvalidTransitionError struct {
	From   Status
	Action Action
	Role   Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action not allowed: %s from %s as %s", e.Action, e.From, e.Role)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (e *InvalidTransitionError) Kind() errs.Kind { return errs.KindInvalidTransition }
