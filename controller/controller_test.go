package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/testutil"
	"github.com/hupe1980/dialogmesh/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingExecutor records Execute calls and delegates to the default
// registry.
type countingExecutor struct {
	mock.Mock
	*action.Registry
}

func newCountingExecutor() *countingExecutor {
	e := &countingExecutor{Registry: action.NewDefaultRegistry()}
	e.On("Execute", mock.Anything).Return()
	return e
}

func (e *countingExecutor) Execute(ctx context.Context, name string, params map[string]any) (action.Result, error) {
	e.Called(name)
	return e.Registry.Execute(ctx, name, params)
}

func newTestController(t *testing.T, m model.Model, optFns ...func(o *Options)) *Controller {
	t.Helper()
	c, err := New(append([]func(o *Options){func(o *Options) {
		o.Model = m
		o.RetryDelay = time.Millisecond
		o.Now = func() time.Time { return testNow }
	}}, optFns...)...)
	require.NoError(t, err)
	return c
}

func say(t *testing.T, c *Controller, sessionID, text string) Reply {
	t.Helper()
	reply, err := c.HandleUserText(context.Background(), text, sessionID)
	require.NoError(t, err)
	return reply
}

func TestRapport_ConfirmWithoutModelCall(t *testing.T) {
	m := model.NewMockModel(model.MockText("Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?"))
	c := newTestController(t, m)

	reply := say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	assert.Equal(t, "Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?", reply.Text)
	assert.Equal(t, ConfirmSuggestions, reply.SuggestedReplies)

	sess, err := c.Session("s1")
	require.NoError(t, err)
	require.NotNil(t, sess.Pending)
	assert.Equal(t, action.CreateRapport, sess.Pending.Action)

	reply = say(t, c, "s1", "Ja")
	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", reply.Text)
	assert.Empty(t, reply.SuggestedReplies)
	assert.Equal(t, 1, m.Calls(), "confirmation must not call the model")

	sess, err = c.Session("s1")
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Len(t, sess.Executed, 1)
}

func TestAppointment_CorrectionThenConfirm(t *testing.T) {
	m := model.NewMockModel(model.MockText("Ich vereinbare den Termin für Anna am 2026-10-16 um 14:30 @ Büro. Passt das?"))
	c := newTestController(t, m)

	say(t, c, "s1", "Termin bei Anna am Freitag 14:30 im Büro")

	reply := say(t, c, "s1", "Nein, 15:00")
	assert.Equal(t, "Ich vereinbare den Termin für Anna am 2026-10-16 um 15:00 @ Büro. Passt das?", reply.Text)
	assert.Equal(t, ConfirmSuggestions, reply.SuggestedReplies)

	reply = say(t, c, "s1", "Ja")
	assert.Equal(t, "Erledigt. Termin #1 für Anna am 2026-10-16 um 15:00 @ Büro.", reply.Text)
	assert.Equal(t, 1, m.Calls())
}

func TestMaterial_EndToEnd(t *testing.T) {
	m := model.NewMockModel(model.MockText("Ich erfasse Material „Schrauben“ (200) für Max. Passt das?"))
	c := newTestController(t, m)

	reply := say(t, c, "s1", "Material Schrauben 200 für Max")
	assert.Equal(t, ConfirmSuggestions, reply.SuggestedReplies)

	reply = say(t, c, "s1", "Passt")
	assert.Equal(t, "Erledigt. Material „Schrauben“ (200) für Max erfasst.", reply.Text)
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name  string
		build func() *core.Session
	}{
		{
			name:  "idle",
			build: func() *core.Session { return testutil.NewSessionBuilder("s1").Build() },
		},
		{
			name: "awaiting confirmation",
			build: func() *core.Session {
				return testutil.NewSessionBuilder("s1").
					User("Rapport für Max").
					Assistant("Ich erstelle den Rapport für Max. Passt das?").
					Pending(action.CreateRapport, map[string]any{"kunde": "Max"}).
					Build()
			},
		},
		{
			name: "collecting fields",
			build: func() *core.Session {
				return testutil.NewSessionBuilder("s1").
					User("Termin bei Anna").
					Assistant("Es fehlen Pflichtangaben (Datum/Zeit). Was soll ich eintragen?").
					Pending(action.SetAppointment, map[string]any{"kunde": "Anna"}, "datum", "zeit").
					Build()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.NewMockModel()
			exec := newCountingExecutor()
			c := newTestController(t, m, func(o *Options) {
				o.Store = testutil.NewStaticStore(tt.build())
				o.Executor = exec
			})

			reply := say(t, c, "s1", "Abbrechen")
			assert.Equal(t, CancelReply, reply.Text)
			assert.Empty(t, reply.SuggestedReplies)

			sess, err := c.Session("s1")
			require.NoError(t, err)
			assert.Nil(t, sess.Pending)
			assert.Empty(t, sess.MissingFields)
			assert.Zero(t, m.Calls())
			exec.AssertNotCalled(t, "Execute", mock.Anything)
		})
	}
}

func TestIdempotentExecution(t *testing.T) {
	m := model.NewMockModel(model.MockText("Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?"))
	exec := newCountingExecutor()
	c := newTestController(t, m, func(o *Options) { o.Executor = exec })

	say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	first := say(t, c, "s1", "Ja")
	second := say(t, c, "s1", "ja")

	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", first.Text)
	assert.Equal(t, AlreadyDone+" Rapport #1 für Max angelegt.", second.Text)
	exec.AssertNumberOfCalls(t, "Execute", 1)
}

func TestModelFailure_ApologizesThenExecutesOnYes(t *testing.T) {
	m := model.NewMockModel(model.MockError(errors.New("boom")))
	c := newTestController(t, m)

	reply := say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	assert.Equal(t, ModelFailure, reply.Text)
	assert.Equal(t, FailureSuggestions, reply.SuggestedReplies)

	reply = say(t, c, "s1", "Ja")
	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", reply.Text)
	assert.Equal(t, 1, m.Calls())
}

func TestModelFailure_TransientIsRetried(t *testing.T) {
	m := model.NewMockModel(
		model.MockError(&model.StatusError{Provider: "mock", StatusCode: 503, Err: errors.New("unavailable")}),
		model.MockText("Hallo! Wie kann ich helfen?"),
	)
	c := newTestController(t, m)

	reply := say(t, c, "s1", "Hallo")
	assert.Equal(t, "Hallo! Wie kann ich helfen?", reply.Text)
	assert.Equal(t, 2, m.Calls())
}

func TestModelFailure_RetryAttemptsAreClamped(t *testing.T) {
	unavailable := func() model.MockStep {
		return model.MockError(&model.StatusError{Provider: "mock", StatusCode: 503, Err: errors.New("unavailable")})
	}
	m := model.NewMockModel(unavailable(), unavailable(), unavailable())
	c := newTestController(t, m, func(o *Options) { o.RetryAttempts = 5 })

	reply := say(t, c, "s1", "Hallo")
	assert.Equal(t, ModelFailure, reply.Text)
	assert.Equal(t, 2, m.Calls(), "at most one retry")
}

// stallingModel answers only when its context ends.
type stallingModel struct{}

func (stallingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func (stallingModel) Info() model.Info { return model.Info{Name: "stalling", Provider: "mock"} }

func TestModelTimeout_ApologizesThenExecutesOnYes(t *testing.T) {
	c := newTestController(t, stallingModel{}, func(o *Options) { o.ModelTimeout = 30 * time.Millisecond })

	reply := say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	assert.Equal(t, ModelFailure, reply.Text)
	assert.Equal(t, FailureSuggestions, reply.SuggestedReplies)

	sess, err := c.Session("s1")
	require.NoError(t, err)
	assert.Nil(t, sess.Pending)
	assert.Empty(t, sess.MissingFields)
	assert.Empty(t, sess.Executed)

	reply = say(t, c, "s1", "Ja")
	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", reply.Text)
}

func TestAffirmativePrefix_StartsNewRequest(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		confirm string
		action  string
	}{
		{
			name:    "appointment",
			text:    "Ja, und einen Termin bei Anna am Freitag 14:30",
			confirm: "Ich vereinbare den Termin für Anna am 2026-10-16 um 14:30. Passt das?",
			action:  action.SetAppointment,
		},
		{
			name:    "material",
			text:    "Ok, Material Schrauben 200 für Max",
			confirm: "Ich erfasse Material „Schrauben“ (200) für Max. Passt das?",
			action:  action.AddMaterial,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.NewMockModel(
				model.MockText("Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?"),
				model.MockText(tt.confirm),
			)
			exec := newCountingExecutor()
			c := newTestController(t, m, func(o *Options) { o.Executor = exec })

			say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
			say(t, c, "s1", "Ja")

			reply := say(t, c, "s1", tt.text)
			assert.Equal(t, tt.confirm, reply.Text)
			assert.Equal(t, ConfirmSuggestions, reply.SuggestedReplies)
			assert.Equal(t, 2, m.Calls())
			exec.AssertNumberOfCalls(t, "Execute", 1)

			sess, err := c.Session("s1")
			require.NoError(t, err)
			require.NotNil(t, sess.Pending)
			assert.Equal(t, tt.action, sess.Pending.Action)
		})
	}
}

func TestToolCall_MalformedArgumentsFallBackToInference(t *testing.T) {
	m := model.NewMockModel(model.MockToolCall("call_1", action.AddMaterial, "{not json"))
	exec := newCountingExecutor()
	c := newTestController(t, m, func(o *Options) { o.Executor = exec })

	reply := say(t, c, "s1", "Material Schrauben 200 für Max")

	assert.Equal(t, "Erledigt. Material „Schrauben“ (200) für Max erfasst.", reply.Text)
	exec.AssertNumberOfCalls(t, "Execute", 1)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Contents[len(reqs[1].Contents)-1]
	require.Equal(t, core.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.FunctionResponses()[0].ID)
	assert.Empty(t, last.FunctionResponses()[0].Error)
}

func TestToolCall_ModelSummarizes(t *testing.T) {
	m := model.NewMockModel(
		model.MockToolCall("call_1", action.CreateCustomer, `{"firstName":"Max","lastName":"Muster"}`),
		model.MockText("Das Kundendossier für Max Muster ist angelegt."),
	)
	c := newTestController(t, m)

	reply := say(t, c, "s1", "Neuer Kunde für Max Muster")
	assert.Equal(t, "Das Kundendossier für Max Muster ist angelegt.", reply.Text)
}

func TestMissingFieldCollection(t *testing.T) {
	m := model.NewMockModel(model.MockText("Gerne. Wann soll der Termin stattfinden?"))
	c := newTestController(t, m)

	reply := say(t, c, "s1", "Termin bei Anna")
	assert.Equal(t, "Es fehlen Pflichtangaben (Datum/Zeit). Was soll ich eintragen?", reply.Text)
	assert.Equal(t, CollectSuggestions, reply.SuggestedReplies)

	reply = say(t, c, "s1", "morgen")
	assert.Equal(t, "Noch fehlt: Zeit.", reply.Text)

	reply = say(t, c, "s1", "14:00")
	assert.Equal(t, "Ich vereinbare den Termin für Anna am 2026-10-15 um 14:00. Passt das?", reply.Text)

	reply = say(t, c, "s1", "Ja")
	assert.Equal(t, "Erledigt. Termin #1 für Anna am 2026-10-15 um 14:00.", reply.Text)
	assert.Equal(t, 1, m.Calls(), "collection must not call the model")
}

func TestConfirmOnYesViaModel(t *testing.T) {
	m := model.NewMockModel(
		model.MockText("Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?"),
		model.MockToolCall("call_1", action.CreateRapport, "{}"),
		model.MockText(""),
	)
	c := newTestController(t, m, func(o *Options) { o.ForceExecuteOnYes = false })

	say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	reply := say(t, c, "s1", "Ja")

	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", reply.Text)
	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[1].Instructions, confirmNudge)
	assert.NotContains(t, reqs[2].Instructions, confirmNudge)
}

func TestConfirmOnYesViaModel_FallsBackWithoutToolCall(t *testing.T) {
	m := model.NewMockModel(
		model.MockText("Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?"),
		model.MockText("Alles klar!"),
	)
	c := newTestController(t, m, func(o *Options) { o.ForceExecuteOnYes = false })

	say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	reply := say(t, c, "s1", "Ja")

	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", reply.Text)
}

func TestPlainModelReply(t *testing.T) {
	m := model.NewMockModel(model.MockText("Hallo! Wie kann ich helfen?"), model.MockText(""))
	c := newTestController(t, m)

	assert.Equal(t, "Hallo! Wie kann ich helfen?", say(t, c, "s1", "Hallo").Text)
	assert.Equal(t, "Verstanden. Wie kann ich helfen?", say(t, c, "s1", "Wie spät ist es").Text)
}

func TestOfflineDefaults(t *testing.T) {
	c, err := New(func(o *Options) { o.Now = func() time.Time { return testNow } })
	require.NoError(t, err)

	reply := say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	assert.Equal(t, "Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?", reply.Text)

	reply = say(t, c, "s1", "Ja")
	assert.Equal(t, "Erledigt. Rapport #1 für Max angelegt.", reply.Text)
}

func TestHistoryStaysPaired(t *testing.T) {
	m := model.NewMockModel(model.MockText("Ich erstelle den Rapport für Max am 2026-10-15 um 09:00. Passt das?"))
	c := newTestController(t, m)

	say(t, c, "s1", "Erstelle einen Rapport für Max morgen 09:00")
	say(t, c, "s1", "Ja")

	sess, err := c.Session("s1")
	require.NoError(t, err)

	calls := map[string]bool{}
	for _, msg := range sess.History {
		for _, fc := range msg.FunctionCalls() {
			calls[fc.ID] = true
		}
		for _, fr := range msg.FunctionResponses() {
			assert.True(t, calls[fr.ID], "response %s without call", fr.ID)
		}
	}
	assert.Len(t, calls, 1)
}

func TestReset(t *testing.T) {
	c := newTestController(t, model.NewMockModel(model.MockText("Hallo!")))

	say(t, c, "s1", "Hallo")
	require.NoError(t, c.Reset("s1"))

	_, err := c.Session("s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestConcurrentSessions(t *testing.T) {
	c := newTestController(t, nil)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("s%d", i)
		g.Go(func() error {
			for _, text := range []string{"Erstelle einen Rapport für Max morgen 09:00", "Ja"} {
				if _, err := c.HandleUserText(context.Background(), text, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 8; i++ {
		sess, err := c.Session(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Len(t, sess.Executed, 1)
	}
}

func TestNew_DuplicateExtractor(t *testing.T) {
	_, err := New(func(o *Options) {
		o.Extractors = []Extractor{RapportExtractor(), RapportExtractor()}
	})
	assert.Error(t, err)
}

func TestFingerprint_IgnoresKeyOrder(t *testing.T) {
	a := fingerprint("X", map[string]any{"a": 1, "b": "2"})
	b := fingerprint("X", map[string]any{"b": "2", "a": 1})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, fingerprint("Y", map[string]any{"a": 1, "b": "2"}))
}
