package upload

import "fmt"

// Stage is the position of a session in the upload pipeline.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageValidating Stage = "validating"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageUpdating   Stage = "updating"
	StageComplete   Stage = "complete"
	StageFailed     Stage = "error"
)

// Progress reported on entry to each stage.
const (
	progressValidating = 0
	progressUploading  = 25
	progressProcessing = 60
	progressUpdating   = 80
	progressComplete   = 100
)

func (s Stage) String() string { return string(s) }

// Terminal reports whether no upload is running from this stage.
func (s Stage) Terminal() bool {
	switch s {
	case StageIdle, StageComplete, StageFailed:
		return true
	default:
		return false
	}
}

// canMove is the stage transition table. Reset is handled separately and may
// move any stage back to idle.
func canMove(from, to Stage) bool {
	switch from {
	case StageIdle, StageComplete, StageFailed:
		return to == StageValidating
	case StageValidating:
		return to == StageUploading || to == StageFailed
	case StageUploading:
		return to == StageProcessing || to == StageFailed
	case StageProcessing:
		return to == StageUpdating || to == StageFailed
	case StageUpdating:
		return to == StageComplete || to == StageFailed
	default:
		return false
	}
}

func stageMoveError(from, to Stage) error {
	return fmt.Errorf("upload stage cannot move from %s to %s", from, to)
}
