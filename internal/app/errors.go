package app

import (
	"fmt"
	"net/http"

	"nyayaflow/api/internal/session"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func notFoundError() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
}

func invalidTransitionError(stage session.Stage, operation string) *DomainError {
	return domainError(http.StatusConflict, "INVALID_TRANSITION",
		fmt.Sprintf("operation %s is not valid in stage %s", operation, stage), nil)
}

func maxIterationsError(max int) *DomainError {
	return domainError(http.StatusConflict, "MAX_ITERATIONS_EXCEEDED",
		fmt.Sprintf("maximum refinement iterations (%d) reached; finalize the current draft or start a new workflow", max), nil)
}

func roleError(err error) *DomainError {
	return domainError(http.StatusBadGateway, "ROLE_INVOCATION_FAILED", err.Error(), nil)
}
