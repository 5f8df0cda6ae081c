package upload

import (
	"errors"
	"fmt"

	"gamepub/internal/errs"
)

var (
	ErrUploadStage      = errors.New("upload stage failed")
	ErrUploadInProgress = errs.WithKind(errors.New("an upload is already running for this session"), errs.KindConflict)
	// ErrSessionReset is returned by an Upload whose session was reset mid-flight.
	ErrSessionReset   = errs.WithKind(errors.New("upload session was reset"), errs.KindConflict)
	ErrSessionMissing = errs.WithKind(errors.New("upload session not found"), errs.KindNotFound)
)

// StageError reports the stage an upload failed in. It matches ErrUploadStage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("upload failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool {
	return target == ErrUploadStage
}

// Kind keeps the kind of a rejection raised while validating (forbidden, not found),
// defaulting to validation.
func (e *StageError) Kind() errs.Kind {
	if e.Stage == StageValidating {
		if k := errs.KindOf(e.Err); k != errs.KindInternal {
			return k
		}
		return errs.KindValidation
	}
	return errs.KindUploadStage
}
