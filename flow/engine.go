package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/dialogmesh/intent"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/vocabulary"
)

// Reply is the assistant message produced by a dispatch.
type Reply struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Result is the outcome of one Dispatch call.
type Result struct {
	Reply  *Reply  `json:"reply,omitempty"`
	Events []Event `json:"events"`
}

// Context is a read-only view of the engine state for debugging tools.
type Context struct {
	ActiveFlowID  string         `json:"active_flow_id,omitempty"`
	CurrentSlotID string         `json:"current_slot_id,omitempty"`
	Filled        map[string]any `json:"filled"`
}

// Options configures an Engine.
type Options struct {
	Catalog   *Catalog
	Router    Router
	Smalltalk SmalltalkFunc
	Logger    logging.Logger
	Now       func() time.Time
}

// Engine drives one conversation through the flow machine. Dispatch calls
// are serialized; one Engine must not be shared between conversations.
type Engine struct {
	machine *Machine
	catalog *Catalog
	logger  logging.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// NewEngine creates an engine. Without options it uses DefaultCatalog routed
// by the default vocabulary's intent classifier.
func NewEngine(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Router == nil {
		c, err := vocabulary.Default().IntentClassifier(func(o *intent.Options) { o.Logger = opts.Logger })
		if err != nil {
			return nil, fmt.Errorf("build intent classifier: %w", err)
		}
		opts.Router = NewClassifierRouter(c, opts.Catalog)
	}
	return &Engine{
		machine: NewMachine(opts.Catalog, opts.Router, opts.Smalltalk),
		catalog: opts.Catalog,
		logger:  opts.Logger,
		now:     opts.Now,
		state:   State{Status: NoActiveFlow},
	}, nil
}

// Dispatch applies one inbound event and returns the reply plus the ordered
// lifecycle events of the transition.
func (e *Engine) Dispatch(ctx context.Context, in Input) Result {
	if in.Kind == "" {
		in.Kind = UserText
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if in.Kind != UserText {
		e.logger.Warn("flow.dispatch.unsupported", "kind", in.Kind)
		return Result{}
	}

	next, events := e.machine.Reduce(e.state, in, e.now())
	e.state = next

	var reply *Reply
	for _, ev := range events {
		e.logger.Debug("flow.event", "kind", ev.Kind, "flow", ev.FlowID, "slot", ev.SlotID)
		switch ev.Kind {
		case FlowCompleted:
			e.logger.Info("flow.completed", "flow", ev.FlowID)
		case AssistantReply:
			reply = &Reply{Role: "assistant", Text: ev.Text}
		}
	}
	return Result{Reply: reply, Events: events}
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Context returns the active flow, current slot and filled values.
func (e *Engine) Context() Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := Context{Filled: map[string]any{}}
	for k, v := range e.state.Filled {
		c.Filled[k] = v
	}
	if def, ok := e.machine.activeFlow(e.state); ok {
		c.ActiveFlowID = def.ID
		c.CurrentSlotID = def.Slots[e.state.SlotIndex].ID
	}
	return c
}

// Reset drops any active flow.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{Status: NoActiveFlow}
}
