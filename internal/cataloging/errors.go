package cataloging

import "errors"

// Stage names the step of the ingestion workflow that failed
type Stage string

const (
	StageUpload    Stage = "upload"
	StageInference Stage = "inference"
	StageParse     Stage = "parse"
	StagePersist   Stage = "persist"
	StageMirror    Stage = "mirror"
)

// StageError wraps a failure with the step it came from
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports which stage produced err, or "" if err did not come from Ingest
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
