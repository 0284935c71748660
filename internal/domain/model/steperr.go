package model

import "fmt"

// Step names the stage of slot processing an error came from. It prefixes
// the slot's last_error so operators can see which stage to look at.
type Step string

const (
	StepFetch  Step = "fetch"
	StepWrite  Step = "write"
	StepUpload Step = "upload"
)

// StepError tags an underlying failure with the processing step it occurred in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

func NewStepError(step Step, err error) *StepError {
	return &StepError{Step: step, Err: err}
}
