package pipeline

import (
	"errors"
	"fmt"
)

// FailureClass partitions pipeline failures for the send log.
//
//	FAILED_PREPARATION: no sender/lead/region; nothing was sent.
//	FAILED_VALIDATION:  lead data insufficient; nothing was sent.
//	FAILED_TO_SEND:     PDF generation or provider error; a send was attempted.
//	INFRA_ERROR:        store or environment failure; aborts this job only.
type FailureClass string

const (
	FailurePreparation FailureClass = "FAILED_PREPARATION"
	FailureValidation  FailureClass = "FAILED_VALIDATION"
	FailureSend        FailureClass = "FAILED_TO_SEND"
	FailureInfra       FailureClass = "INFRA_ERROR"
)

var (
	ErrNoActiveSender = errors.New("no active sender available")
	ErrNoEligibleLead = errors.New("no eligible lead available")
)

// ClassifiedError carries the failure class alongside the cause.
type ClassifiedError struct {
	Class FailureClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func preparationErr(err error) error {
	return &ClassifiedError{Class: FailurePreparation, Err: err}
}

func validationErr(err error) error {
	return &ClassifiedError{Class: FailureValidation, Err: err}
}

func sendErr(err error) error {
	return &ClassifiedError{Class: FailureSend, Err: err}
}

// Classify extracts the failure class; unclassified errors are infra.
func Classify(err error) FailureClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return FailureInfra
}
