package action

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/dialogmesh/internal/util"
)

// FunctionAction exposes a plain Go function as an Action.
//
// A FunctionAction has no mutable state after construction and is safe for
// concurrent use.
type FunctionAction struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, params map[string]any) (Result, error)
}

// NewFunctionAction constructs a FunctionAction from an explicit schema.
//
// Example:
//
//	ping := NewFunctionAction(
//	  "PING",
//	  "Antwortet mit pong",
//	  map[string]any{"type": "object", "properties": map[string]any{}},
//	  func(ctx context.Context, params map[string]any) (Result, error) {
//	    return Result{OK: true, Message: "pong"}, nil
//	  },
//	)
func NewFunctionAction(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, params map[string]any) (Result, error),
) *FunctionAction {
	return &FunctionAction{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionActionFromStruct derives the parameter schema from a struct
// (see util.CreateSchema for the supported tags).
func NewFunctionActionFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, params map[string]any) (Result, error),
) *FunctionAction {
	return NewFunctionAction(name, description, util.CreateSchema(structType), fn)
}

// NewTypedAction derives the schema from P and decodes parameters into it
// before calling fn.
func NewTypedAction[P any](
	name, description string,
	fn func(ctx context.Context, params P) (Result, error),
) *FunctionAction {
	var zero P
	return NewFunctionActionFromStruct(name, description, zero, func(ctx context.Context, raw map[string]any) (Result, error) {
		var p P
		if err := decodeParams(raw, &p); err != nil {
			return Result{}, NewActionError(name, err.Error(), CodeValidation)
		}
		return fn(ctx, p)
	})
}

func decodeParams(raw map[string]any, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Name returns the unique action name.
func (a *FunctionAction) Name() string { return a.name }

// Description returns the model-facing description.
func (a *FunctionAction) Description() string { return a.description }

// Parameters returns the JSON schema describing expected parameters.
func (a *FunctionAction) Parameters() map[string]any { return a.parameters }

// Execute invokes the wrapped function.
func (a *FunctionAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	return a.fn(ctx, params)
}
