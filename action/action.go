package action

import (
	"context"
	"errors"
	"fmt"
)

// Error codes carried by ActionError.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeExecution     = "EXECUTION_ERROR"
	CodeUnknownAction = "UNKNOWN_ACTION"
)

// ErrUnknownAction is matched by ActionErrors with CodeUnknownAction.
var ErrUnknownAction = errors.New("unknown action")

// Action is a side-effecting business operation.
type Action interface {
	// Name is the unique identifier, e.g. CREATE_RAPPORT.
	Name() string

	// Description is shown to the language model.
	Description() string

	// Parameters returns the JSON schema of the accepted parameters.
	Parameters() map[string]any

	// Execute runs the action with already validated parameters.
	Execute(ctx context.Context, params map[string]any) (Result, error)
}

// Result is the outcome of an executed action.
type Result struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Validation reports whether parameters satisfy an action's schema. Missing
// lists absent or invalid fields in schema order.
type Validation struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
	Details string   `json:"details,omitempty"`
}

// ActionError represents errors that occur while validating or executing an action.
type ActionError struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ActionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("action error [%s] in %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("action error in %s: %s", e.Action, e.Message)
}

// Is matches ErrUnknownAction for CodeUnknownAction errors.
func (e *ActionError) Is(target error) bool {
	return target == ErrUnknownAction && e.Code == CodeUnknownAction
}

// NewActionError creates a new ActionError with the specified details.
func NewActionError(action, message, code string) *ActionError {
	return &ActionError{
		Action:  action,
		Message: message,
		Code:    code,
	}
}
