package flow

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 29, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(func(o *Options) { o.Now = func() time.Time { return fixedNow } })
	require.NoError(t, err)
	return e
}

func send(t *testing.T, e *Engine, text string) Result {
	t.Helper()
	res := e.Dispatch(context.Background(), Input{Kind: UserText, Text: text})
	require.NotNil(t, res.Reply)
	return res
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func countKinds(all []Event) map[EventKind]int {
	counts := map[EventKind]int{}
	for _, ev := range all {
		counts[ev.Kind]++
	}
	return counts
}

func TestEngine_CreateCustomerScenario(t *testing.T) {
	e := newTestEngine(t)

	steps := []struct {
		in   string
		want string
	}{
		{"kunde anlegen", "Wie lautet der Vorname?"},
		{"Max", "Wie lautet der Nachname?"},
		{"Muster", "Wie lautet die Adresse?"},
		{"Musterstrasse 1", "Wie lautet die Telefonnummer?"},
		{"076 111 22 33", "Wie lautet die E-Mail-Adresse?"},
		{"not-an-email", "Wie lautet die E-Mail-Adresse?"},
		{"max@example.com", "Gibt es bereits ein Projekt? (ja/nein)"},
	}
	var all []Event
	for _, s := range steps {
		res := send(t, e, s.in)
		assert.Equal(t, s.want, res.Reply.Text, s.in)
		assert.Equal(t, "assistant", res.Reply.Role)
		all = append(all, res.Events...)
	}
	assert.Equal(t, "hasProject", e.Context().CurrentSlotID)

	res := send(t, e, "ja")
	all = append(all, res.Events...)
	assert.Equal(t, "Kundendossier angelegt: Max Muster, Musterstrasse 1, Tel 076 111 22 33, max@example.com, Projekt: ja.", res.Reply.Text)
	assert.Equal(t, []EventKind{StepValid, FlowCompleted, AssistantReply}, kinds(res.Events))
	assert.False(t, e.State().Active())

	counts := countKinds(all)
	assert.Equal(t, 1, counts[FlowStarted])
	assert.Equal(t, 6, counts[StepPrompt])
	assert.Equal(t, 6, counts[StepValid])
	assert.Equal(t, 1, counts[StepInvalid])
	assert.Equal(t, 1, counts[FlowCompleted])
	assert.Equal(t, 8, counts[AssistantReply])
}

func TestEngine_EventOrdering(t *testing.T) {
	e := newTestEngine(t)

	res := send(t, e, "Rechnung")
	assert.Equal(t, []EventKind{FlowStarted, StepPrompt, AssistantReply}, kinds(res.Events))
	assert.Equal(t, Invoice, res.Events[0].FlowID)

	res = send(t, e, "")
	assert.Equal(t, []EventKind{StepInvalid, AssistantReply}, kinds(res.Events))
	assert.Equal(t, "Für welches Projekt soll die Rechnung erstellt werden?", res.Events[0].Prompt)
	assert.NotEmpty(t, res.Events[0].Error)

	res = send(t, e, "Neubau Seestrasse")
	assert.Equal(t, []EventKind{StepValid, FlowCompleted, AssistantReply}, kinds(res.Events))
	assert.Equal(t, `Rechnung wird erstellt für Projekt "Neubau Seestrasse".`, res.Reply.Text)
	assert.Equal(t, res.Reply.Text, res.Events[1].Summary)
}

func TestEngine_RapportCounts(t *testing.T) {
	e := newTestEngine(t)
	def, ok := DefaultCatalog().Get(Rapport)
	require.True(t, ok)
	k := len(def.Slots)
	require.Equal(t, 16, k)

	answers := map[string]string{
		"date":      "31.01.2025",
		"notes":     "",
		"photos":    "nein",
		"signature": "unterschrieben",
	}

	var all []Event
	res := send(t, e, "Tagesrapport erfassen")
	all = append(all, res.Events...)
	asked := []string{res.Events[1].SlotID}
	for _, slot := range def.Slots {
		answer, ok := answers[slot.ID]
		if !ok {
			answer = "Antwort " + slot.ID
		}
		res = send(t, e, answer)
		all = append(all, res.Events...)
		for _, ev := range res.Events {
			if ev.Kind == StepPrompt {
				asked = append(asked, ev.SlotID)
			}
		}
	}

	counts := countKinds(all)
	assert.Equal(t, 1, counts[FlowStarted])
	assert.Equal(t, k, counts[StepPrompt])
	assert.Equal(t, k, counts[StepValid])
	assert.Equal(t, 0, counts[StepInvalid])
	assert.Equal(t, 1, counts[FlowCompleted])
	assert.Equal(t, k+1, counts[AssistantReply])

	want := make([]string, k)
	for i, s := range def.Slots {
		want[i] = s.ID
	}
	assert.Equal(t, want, asked)
	assert.Equal(t, "Rapport abgeschlossen für Projekt Antwort project. Mitarbeiter: Antwort worker. Datum: 2025-01-31.", res.Reply.Text)
}

func TestEngine_InvalidDoesNotAdvance(t *testing.T) {
	e := newTestEngine(t)
	send(t, e, "rapport")
	send(t, e, "P1")
	send(t, e, "Anna")

	before := e.State()
	res := send(t, e, "irgendwann")
	assert.Equal(t, "Bitte heutiges Datum:", res.Reply.Text)
	assert.Equal(t, before.SlotIndex, e.State().SlotIndex)

	send(t, e, "morgen")
	assert.Equal(t, "2025-01-30", e.Context().Filled["date"])
}

func TestEngine_Smalltalk(t *testing.T) {
	e := newTestEngine(t)

	res := send(t, e, "Hallo")
	assert.Equal(t, "Guten Morgen! Wie kann ich helfen?", res.Reply.Text)
	assert.Equal(t, []EventKind{AssistantReply}, kinds(res.Events))

	assert.Equal(t, "Mir geht's gut, danke! Wie kann ich helfen?", send(t, e, "wie geht's?").Reply.Text)
	assert.Equal(t, Help, send(t, e, "was kannst du?").Reply.Text)
	assert.Equal(t, Fallback, send(t, e, "blabla").Reply.Text)
	assert.False(t, e.State().Active())
}

func TestSmalltalk_Greetings(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 1, 1, h, 0, 0, 0, time.UTC) }
	assert.Equal(t, "Guten Tag! Wie kann ich helfen?", Smalltalk("servus", at(12)))
	assert.Equal(t, "Guten Abend! Wie kann ich helfen?", Smalltalk("moin", at(18)))
	assert.Equal(t, "Hallo! Wie kann ich helfen?", Smalltalk("hi", at(23)))
	assert.Equal(t, Fallback, Smalltalk("hilfsbereit", at(12)))
}

func TestSmalltalk_UnanchoredPhrases(t *testing.T) {
	noon := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Guten Tag! Wie kann ich helfen?", Smalltalk("na hallo", noon))
	assert.Equal(t, "Mir geht's gut, danke! Wie kann ich helfen?", Smalltalk("Alles gut bei dir?", noon))
	assert.Equal(t, Help, Smalltalk("Wobei kannst du helfen?", noon))
}

func TestMachine_ReduceIsPure(t *testing.T) {
	m := NewMachine(DefaultCatalog(), staticRouter{id: Invoice}, nil)

	state := State{Status: AwaitingSlot, FlowID: CreateCustomer, SlotIndex: 1, Filled: map[string]any{"firstName": "Max"}}
	snapshot := state.clone()

	next, events := m.Reduce(state, Input{Kind: UserText, Text: "  Muster  "}, fixedNow)
	if diff := cmp.Diff(snapshot, state); diff != "" {
		t.Fatalf("input state mutated (-want +got):\n%s", diff)
	}

	want := State{Status: AwaitingSlot, FlowID: CreateCustomer, SlotIndex: 2, Filled: map[string]any{"firstName": "Max", "lastName": "Muster"}}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Fatalf("unexpected next state (-want +got):\n%s", diff)
	}
	assert.Equal(t, []EventKind{StepValid, StepPrompt, AssistantReply}, kinds(events))

	// same input, same output
	again, events2 := m.Reduce(state, Input{Kind: UserText, Text: "  Muster  "}, fixedNow)
	assert.Empty(t, cmp.Diff(next, again))
	assert.Empty(t, cmp.Diff(events, events2))
}

func TestMachine_InconsistentStateIsTreatedAsIdle(t *testing.T) {
	m := NewMachine(DefaultCatalog(), staticRouter{}, nil)
	next, events := m.Reduce(State{Status: AwaitingSlot, FlowID: "gone", SlotIndex: 3}, Input{Text: "hallo"}, fixedNow)
	assert.Equal(t, NoActiveFlow, next.Status)
	assert.Equal(t, []EventKind{AssistantReply}, kinds(events))
}

func TestEngine_ContextAndReset(t *testing.T) {
	e := newTestEngine(t)
	send(t, e, "Kundendossier")
	send(t, e, "Max")

	c := e.Context()
	assert.Equal(t, CreateCustomer, c.ActiveFlowID)
	assert.Equal(t, "lastName", c.CurrentSlotID)
	assert.Equal(t, map[string]any{"firstName": "Max"}, c.Filled)

	e.Reset()
	assert.Equal(t, Context{Filled: map[string]any{}}, e.Context())
}

func TestNewCatalog_Validation(t *testing.T) {
	sum := func(map[string]any) string { return "" }
	_, err := NewCatalog(&Definition{ID: "x", Summarize: sum})
	assert.Error(t, err)

	_, err = NewCatalog(&Definition{ID: "x", Slots: []Slot{{ID: "a", Validate: Optional()}}})
	assert.Error(t, err)

	_, err = NewCatalog(
		&Definition{ID: "x", Slots: []Slot{{ID: "a", Validate: Optional()}}, Summarize: sum},
		&Definition{ID: "x", Slots: []Slot{{ID: "a", Validate: Optional()}}, Summarize: sum},
	)
	assert.Error(t, err)

	_, err = NewCatalog(&Definition{ID: "x", Slots: []Slot{{ID: "a", Validate: Optional()}, {ID: "a", Validate: Optional()}}, Summarize: sum})
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	v, err := YesNo()("J", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "ja", v)
	v, err = YesNo()("no", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "nein", v)
	_, err = YesNo()("vielleicht", fixedNow)
	assert.Error(t, err)

	for _, in := range []string{"31.01.2025", "2025-01-31", "31/01/2025"} {
		v, err := Date()(in, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, "2025-01-31", v)
	}

	_, err = Email()("max@example", fixedNow)
	assert.Error(t, err)
	_, err = Matches(`^[+0-9 ()-]{7,}$`)("12ab", fixedNow)
	assert.Error(t, err)
	_, err = MinLength(3)("ab", fixedNow)
	assert.Error(t, err)
}

type staticRouter struct{ id string }

func (r staticRouter) Route(string) (*Definition, bool) {
	if r.id == "" {
		return nil, false
	}
	return DefaultCatalog().Get(r.id)
}
