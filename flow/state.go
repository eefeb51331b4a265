package flow

import (
	"regexp"
	"strings"
	"time"
)

// Status is the coarse state of a conversation's flow machine.
type Status string

const (
	NoActiveFlow Status = "NO_ACTIVE_FLOW"
	AwaitingSlot Status = "AWAITING_SLOT"
)

// State is the single source of truth for one conversation's flow progress.
// The zero value is NO_ACTIVE_FLOW. Values are treated as immutable: Reduce
// always returns a fresh State.
type State struct {
	Status    Status         `json:"status"`
	FlowID    string         `json:"flow_id,omitempty"`
	SlotIndex int            `json:"slot_index"`
	Filled    map[string]any `json:"filled,omitempty"`
}

// Active reports whether a flow is awaiting a slot.
func (s State) Active() bool {
	return s.Status == AwaitingSlot
}

func (s State) clone() State {
	cp := s
	if s.Filled != nil {
		cp.Filled = make(map[string]any, len(s.Filled))
		for k, v := range s.Filled {
			cp.Filled[k] = v
		}
	}
	return cp
}

// EventKind names a lifecycle event.
type EventKind string

const (
	FlowStarted    EventKind = "FLOW_STARTED"
	StepPrompt     EventKind = "STEP_PROMPT"
	StepValid      EventKind = "STEP_VALID"
	StepInvalid    EventKind = "STEP_INVALID"
	FlowCompleted  EventKind = "FLOW_COMPLETED"
	AssistantReply EventKind = "ASSISTANT_REPLY"
)

// Event is a structured lifecycle record emitted by a transition.
type Event struct {
	Kind    EventKind `json:"kind"`
	FlowID  string    `json:"flow_id,omitempty"`
	SlotID  string    `json:"slot_id,omitempty"`
	Value   any       `json:"value,omitempty"`
	Error   string    `json:"error,omitempty"`
	Prompt  string    `json:"prompt,omitempty"`
	Summary string    `json:"summary,omitempty"`
	Text    string    `json:"text,omitempty"`
}

// InputKind names an inbound event type.
type InputKind string

// UserText is the only inbound event kind.
const UserText InputKind = "USER_TEXT"

// Input is an inbound event.
type Input struct {
	Kind InputKind `json:"kind"`
	Text string    `json:"text"`
}

// Router picks the flow to start for an utterance while no flow is active.
type Router interface {
	Route(text string) (*Definition, bool)
}

// SmalltalkFunc produces the reply when no flow is started.
type SmalltalkFunc func(text string, now time.Time) string

// Machine holds the immutable configuration of the flow state machine.
type Machine struct {
	catalog   *Catalog
	router    Router
	smalltalk SmalltalkFunc
}

// NewMachine creates a Machine. A nil smalltalk func falls back to Smalltalk.
func NewMachine(catalog *Catalog, router Router, smalltalk SmalltalkFunc) *Machine {
	if smalltalk == nil {
		smalltalk = Smalltalk
	}
	return &Machine{catalog: catalog, router: router, smalltalk: smalltalk}
}

var spaces = regexp.MustCompile(`\s+`)

// Reduce is the pure transition function (state, input) -> (state, events).
// It never mutates state; the returned events are in emission order and end
// with exactly one ASSISTANT_REPLY.
func (m *Machine) Reduce(state State, in Input, now time.Time) (State, []Event) {
	text := strings.TrimSpace(spaces.ReplaceAllString(in.Text, " "))

	def, ok := m.activeFlow(state)
	if !ok {
		return m.start(text, now)
	}

	slot := def.Slots[state.SlotIndex]
	value, err := slot.Validate(text, now)
	if err != nil {
		return state.clone(), []Event{
			{Kind: StepInvalid, FlowID: def.ID, SlotID: slot.ID, Error: err.Error(), Prompt: slot.Prompt},
			{Kind: AssistantReply, FlowID: def.ID, Text: slot.Prompt},
		}
	}

	next := state.clone()
	if next.Filled == nil {
		next.Filled = map[string]any{}
	}
	next.Filled[slot.ID] = value
	events := []Event{{Kind: StepValid, FlowID: def.ID, SlotID: slot.ID, Value: value}}

	if state.SlotIndex+1 < len(def.Slots) {
		next.SlotIndex = state.SlotIndex + 1
		prompt := def.Slots[next.SlotIndex].Prompt
		events = append(events,
			Event{Kind: StepPrompt, FlowID: def.ID, SlotID: def.Slots[next.SlotIndex].ID, Prompt: prompt},
			Event{Kind: AssistantReply, FlowID: def.ID, Text: prompt},
		)
		return next, events
	}

	summary := def.Summarize(next.Filled)
	events = append(events,
		Event{Kind: FlowCompleted, FlowID: def.ID, Summary: summary, Value: next.Filled},
		Event{Kind: AssistantReply, FlowID: def.ID, Text: summary},
	)
	return State{Status: NoActiveFlow}, events
}

func (m *Machine) start(text string, now time.Time) (State, []Event) {
	if m.router != nil {
		if def, ok := m.router.Route(text); ok {
			first := def.Slots[0]
			return State{Status: AwaitingSlot, FlowID: def.ID, SlotIndex: 0, Filled: map[string]any{}}, []Event{
				{Kind: FlowStarted, FlowID: def.ID},
				{Kind: StepPrompt, FlowID: def.ID, SlotID: first.ID, Prompt: first.Prompt},
				{Kind: AssistantReply, FlowID: def.ID, Text: first.Prompt},
			}
		}
	}
	return State{Status: NoActiveFlow}, []Event{{Kind: AssistantReply, Text: m.smalltalk(text, now)}}
}

// activeFlow resolves the flow of an AWAITING_SLOT state. Inconsistent states
// (unknown flow, index out of range) are treated as NO_ACTIVE_FLOW.
func (m *Machine) activeFlow(state State) (*Definition, bool) {
	if state.Status != AwaitingSlot || m.catalog == nil {
		return nil, false
	}
	def, ok := m.catalog.Get(state.FlowID)
	if !ok || state.SlotIndex < 0 || state.SlotIndex >= len(def.Slots) {
		return nil, false
	}
	return def, true
}
