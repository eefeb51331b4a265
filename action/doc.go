// Package action implements the business action subsystem the conversation
// controller dispatches to once a request is confirmed.
//
// An Action exposes a name, a model-facing description and a JSON schema for
// its parameters. The Registry compiles each schema with
// github.com/santhosh-tekuri/jsonschema/v5, reports which fields are missing
// or invalid (Validate) and runs actions with uniform *ActionError handling
// (Execute). Registry.Definitions exposes the same catalog as model tools so
// the language model and the deterministic path share one source of truth.
//
// NewDefaultRegistry wires the built-in craft-business actions:
//
//	CREATE_RAPPORT   kunde, datum?, zeit?, beschreibung?
//	CREATE_CUSTOMER  firstName, lastName, telefon?, adresse?
//	ADD_MATERIAL     kunde, artikel, menge, einheit?, preis?
//	SET_APPOINTMENT  kunde, datum, zeit, ort?, zweck?
//	CREATE_PROJECT   kunde, projekt, start?, beschreibung?
package action
