package pipeline

import "fmt"

// Stage identifies the pipeline stage an error came from. Config failures
// happen before Run and are classified by the caller; the remaining stages
// are classified here.
type Stage string

const (
	StageConfig Stage = "config"
	StageAuth   Stage = "auth"
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StageLoad   Stage = "load"
)

// StageError carries the stage that failed alongside the cause.
//
// The pipeline has no local recovery or retry, so a StageError always means
// the run is over. Callers use the Stage for exit reporting and errors.As for
// classification; the cause chain stays reachable via Unwrap.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with a stage tag. It exists for the config stage,
// which fails before a Runner is constructed.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
