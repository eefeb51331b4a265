package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Names(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{CreateRapport, CreateCustomer, AddMaterial, SetAppointment, CreateProject}, r.Names())

	defs := r.Definitions()
	require.Len(t, defs, 5)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, CreateRapport, defs[0].Function.Name)
	assert.NotEmpty(t, defs[0].Function.Description)
	assert.Equal(t, []string{"kunde"}, defs[0].Function.Parameters["required"])
}

func TestValidate(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name    string
		action  string
		params  map[string]any
		ok      bool
		missing []string
	}{
		{"rapport complete", CreateRapport, map[string]any{"kunde": "Max"}, true, nil},
		{"rapport blank kunde", CreateRapport, map[string]any{"kunde": "  "}, false, []string{"kunde"}},
		{"customer missing both", CreateCustomer, map[string]any{}, false, []string{"firstName", "lastName"}},
		{"customer missing last", CreateCustomer, map[string]any{"firstName": "Max"}, false, []string{"lastName"}},
		{"appointment short zeit", SetAppointment, map[string]any{"kunde": "Anna", "datum": "2025-01-31", "zeit": "9"}, false, []string{"zeit"}},
		{"appointment missing in schema order", SetAppointment, map[string]any{"kunde": "Anna"}, false, []string{"datum", "zeit"}},
		{"material numeric string", AddMaterial, map[string]any{"kunde": "Max", "artikel": "Schrauben", "menge": "200"}, true, nil},
		{"material bad menge", AddMaterial, map[string]any{"kunde": "Max", "artikel": "Schrauben", "menge": "viele"}, false, []string{"menge"}},
		{"material null optional", AddMaterial, map[string]any{"kunde": "Max", "artikel": "Kabel", "menge": 3.0, "preis": nil}, true, nil},
		{"unknown action", "NOPE", map[string]any{}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := r.Validate(tt.action, tt.params)
			assert.Equal(t, tt.ok, v.OK)
			assert.Equal(t, tt.missing, v.Missing)
		})
	}
}

func TestCoerce(t *testing.T) {
	r := NewDefaultRegistry()

	out := r.Coerce(AddMaterial, map[string]any{"menge": "2,5", "kunde": " Max ", "einheit": 3.0})
	assert.Equal(t, 2.5, out["menge"])
	assert.Equal(t, "Max", out["kunde"])
	assert.Equal(t, "3", out["einheit"])

	in := map[string]any{"x": 1}
	out = r.Coerce("NOPE", in)
	assert.Equal(t, in, out)
	out["x"] = 2
	assert.Equal(t, 1, in["x"])
}

func TestExecute_BuiltinMessages(t *testing.T) {
	r := NewDefaultRegistry()
	ctx := context.Background()

	res, err := r.Execute(ctx, CreateRapport, map[string]any{"kunde": "Max"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "1", res.ID)
	assert.Equal(t, "Rapport #1 für Max angelegt.", res.Message)

	res, err = r.Execute(ctx, AddMaterial, map[string]any{"kunde": "Max", "artikel": "Schrauben", "menge": "200"})
	require.NoError(t, err)
	assert.Equal(t, "Material „Schrauben“ (200) für Max erfasst.", res.Message)

	res, err = r.Execute(ctx, SetAppointment, map[string]any{"kunde": "Anna", "datum": "2025-01-31", "zeit": "15:00", "ort": "Büro"})
	require.NoError(t, err)
	assert.Equal(t, "Termin #3 für Anna am 2025-01-31 um 15:00 @ Büro.", res.Message)

	res, err = r.Execute(ctx, CreateCustomer, map[string]any{"firstName": "Max", "lastName": "Muster"})
	require.NoError(t, err)
	assert.Equal(t, "Kundendossier #4 für Max Muster angelegt.", res.Message)

	res, err = r.Execute(ctx, CreateProject, map[string]any{"kunde": "Max", "projekt": "Bad"})
	require.NoError(t, err)
	assert.Equal(t, "Projekt #5 „Bad“ für Max angelegt.", res.Message)
}

func TestExecute_Errors(t *testing.T) {
	r := NewDefaultRegistry()
	ctx := context.Background()

	_, err := r.Execute(ctx, "NOPE", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = r.Execute(ctx, CreateCustomer, map[string]any{"firstName": "Max"})
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeValidation, actionErr.Code)
	assert.Contains(t, actionErr.Error(), "lastName")
	assert.NotErrorIs(t, err, ErrUnknownAction)
}

func TestExecute_WrapsPlainErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewFunctionAction("FAIL", "fails", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (Result, error) { return Result{}, errors.New("disk full") })))
	require.NoError(t, r.Register(NewFunctionAction("CUSTOM", "custom code", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (Result, error) {
			return Result{}, NewActionError("CUSTOM", "quota", "QUOTA")
		})))

	_, err := r.Execute(context.Background(), "FAIL", nil)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeExecution, actionErr.Code)
	assert.Equal(t, "action error [EXECUTION_ERROR] in FAIL: disk full", actionErr.Error())

	_, err = r.Execute(context.Background(), "CUSTOM", nil)
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "QUOTA", actionErr.Code)
}

func TestRegister_Errors(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, map[string]any) (Result, error) { return Result{OK: true}, nil }

	assert.Error(t, r.Register(NewFunctionAction("", "", nil, noop)))
	require.NoError(t, r.Register(NewFunctionAction("A", "", map[string]any{"type": "object"}, noop)))
	assert.Error(t, r.Register(NewFunctionAction("A", "", map[string]any{"type": "object"}, noop)))
	assert.Error(t, r.Register(NewFunctionAction("B", "", map[string]any{"type": 42}, noop)))

	_, ok := r.Get("A")
	assert.True(t, ok)
	_, ok = r.Get("B")
	assert.False(t, ok)
}

func TestActionError_NoCode(t *testing.T) {
	assert.Equal(t, "action error in X: boom", (&ActionError{Action: "X", Message: "boom"}).Error())
}
