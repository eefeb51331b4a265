package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hupe1980/dialogmesh/internal/util"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
)

// Options configures a Registry.
type Options struct {
	Logger logging.Logger
}

type entry struct {
	action Action
	schema *jsonschema.Schema
	order  []string
}

// Registry holds the executable actions and their compiled schemas. It is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	names   []string
	logger  logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		entries: map[string]*entry{},
		logger:  opts.Logger,
	}
}

// Register compiles the action's schema and adds it. Names must be unique.
func (r *Registry) Register(a Action) error {
	name := a.Name()
	if name == "" {
		return errors.New("action name must not be empty")
	}

	raw, err := json.Marshal(a.Parameters())
	if err != nil {
		return fmt.Errorf("action %s: encode schema: %w", name, err)
	}
	schema, err := jsonschema.CompileString(name+".json", string(raw))
	if err != nil {
		return fmt.Errorf("action %s: compile schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("action %s already registered", name)
	}
	r.entries[name] = &entry{action: a, schema: schema, order: util.FieldOrder(a.Parameters())}
	r.names = append(r.names, name)

	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(actions ...Action) *Registry {
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the named action.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.action, true
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Definitions exposes the registered actions as model tools.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]model.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		a := r.entries[name].action
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        a.Name(),
				Description: a.Description(),
				Parameters:  a.Parameters(),
			},
		})
	}
	return defs
}

// Coerce returns a copy of params with strings trimmed and values converted
// to the property types declared by the action's schema where that is
// lossless ("200" becomes 200 for a number field). Nil values are dropped.
// Unknown actions are copied unchanged.
func (r *Registry) Coerce(name string, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	a, ok := r.Get(name)
	if !ok {
		for k, v := range params {
			out[k] = v
		}
		return out
	}

	schema := a.Parameters()
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, isString := v.(string); isString {
			v = strings.TrimSpace(s)
		}
		switch util.PropertyType(schema, k) {
		case "number", "integer":
			if s, isString := v.(string); isString {
				if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
					v = f
				}
			}
		case "string":
			switch v.(type) {
			case float64, float32, int, int64, bool:
				v = util.FormatValue(v)
			}
		}
		out[k] = v
	}
	return out
}

// Validate checks params against the action's schema. A required field that
// is absent or blank is missing; so is any field failing a schema keyword.
// Unknown actions validate OK and fail later in Execute.
func (r *Registry) Validate(name string, params map[string]any) Validation {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Validation{OK: true}
	}

	params = r.Coerce(name, params)
	bad := map[string]bool{}

	for _, field := range util.RequiredFields(e.action.Parameters()) {
		v, present := params[field]
		if !present || v == nil {
			bad[field] = true
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			bad[field] = true
		}
	}

	var details string
	if err := validateSchema(e.schema, params); err != nil {
		details = err.Error()
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			collectInvalidFields(verr, bad)
		}
	}

	if len(bad) == 0 {
		return Validation{OK: true}
	}

	missing := make([]string, 0, len(bad))
	for _, field := range e.order {
		if bad[field] {
			missing = append(missing, field)
			delete(bad, field)
		}
	}
	// Fields not declared in the schema keep a stable tail order.
	for _, field := range sortedKeys(bad) {
		missing = append(missing, field)
	}

	return Validation{OK: false, Missing: missing, Details: details}
}

// Execute validates and runs the named action. Failures are *ActionError
// values: CodeUnknownAction, CodeValidation, or CodeExecution (unless the
// action returned an *ActionError itself).
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (Result, error) {
	start := time.Now()

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("action.execute.unknown", "action", name)
		return Result{}, NewActionError(name, "no such action", CodeUnknownAction)
	}

	params = r.Coerce(name, params)
	if v := r.Validate(name, params); !v.OK {
		r.logger.Warn("action.execute.validation_failed", "action", name, "missing", v.Missing)
		return Result{}, NewActionError(name, fmt.Sprintf("invalid or missing fields: %s", strings.Join(v.Missing, ", ")), CodeValidation)
	}

	r.logger.Debug("action.execute.start", "action", name)

	result, err := e.action.Execute(ctx, params)
	if err != nil {
		var actionErr *ActionError
		if errors.As(err, &actionErr) {
			r.logger.Error("action.execute.error", "action", name, "code", actionErr.Code, "error", actionErr.Message)
			return Result{}, actionErr
		}
		r.logger.Error("action.execute.error", "action", name, "error", err.Error())
		return Result{}, NewActionError(name, err.Error(), CodeExecution)
	}

	r.logger.Info("action.execute.success", "action", name, "id", result.ID, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// validateSchema round-trips params through JSON so the validator sees the
// same value shapes a decoded request would have.
func validateSchema(schema *jsonschema.Schema, params map[string]any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

// collectInvalidFields marks the top-level property of every failing leaf.
func collectInvalidFields(verr *jsonschema.ValidationError, bad map[string]bool) {
	if len(verr.Causes) == 0 {
		if field := topLevelField(verr.InstanceLocation); field != "" {
			bad[field] = true
		}
		return
	}
	for _, cause := range verr.Causes {
		collectInvalidFields(cause, bad)
	}
}

func topLevelField(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	field, _, _ := strings.Cut(pointer, "/")
	field = strings.ReplaceAll(field, "~1", "/")
	return strings.ReplaceAll(field, "~0", "~")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
