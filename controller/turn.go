package controller

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/flow"
	"github.com/hupe1980/dialogmesh/intent"
	"github.com/hupe1980/dialogmesh/internal/dateparse"
	"github.com/hupe1980/dialogmesh/internal/util"
	"github.com/hupe1980/dialogmesh/model"
)

// Telemetry values of the controller.turn record.
const (
	phaseConfirm = "confirm"
	phaseExecute = "execute"
	phaseCollect = "collect"
	phaseCancel  = "cancel"
	phaseReply   = "reply"

	originLLM      = "llm"
	originFallback = "fallback"
)

// turn is the state of one HandleUserText call. The session lock is held
// for its whole lifetime.
type turn struct {
	c       *Controller
	ctx     context.Context
	sess    *core.Session
	now     time.Time
	limiter *core.ModelLimiter

	phase  string
	origin string
	action string
}

func (t *turn) handle(text string) Reply {
	r := t.c.replies

	if r.cancel.MatchString(text) {
		return t.cancel(text)
	}
	if r.negate.MatchString(text) {
		if reply, ok := t.correct(text); ok {
			return reply
		}
	}
	if r.affirm.MatchString(text) && len(t.sess.MissingFields) == 0 {
		if reply, ok := t.affirm(text); ok {
			return reply
		}
	}
	if t.sess.Pending != nil && len(t.sess.MissingFields) > 0 {
		return t.collect(text)
	}
	return t.delegate(text)
}

func (t *turn) cancel(text string) Reply {
	t.phase = phaseCancel
	if t.sess.Pending != nil {
		t.action = t.sess.Pending.Action
	}
	t.sess.Append(core.NewTextContent(core.RoleUser, text))
	t.sess.ClearPending()
	return t.say(CancelReply, nil)
}

// correct re-parses the last confirmation, applies the correction and asks
// again.
func (t *turn) correct(text string) (Reply, bool) {
	last, ok := t.sess.LastAssistantText()
	if !ok {
		return Reply{}, false
	}

	name, params, found := t.c.parseConfirm(last)
	if !found && t.sess.Pending != nil && len(t.sess.MissingFields) == 0 {
		name, params, found = t.sess.Pending.Action, core.CloneParams(t.sess.Pending.Params), true
	}
	if !found && t.c.replies.confirmQuestion.MatchString(last) {
		name, params, found = t.c.inferFromHistory(t.sess.History, t.now)
	}
	if !found {
		return Reply{}, false
	}
	ex, ok := t.c.extractors[name]
	if !ok {
		return Reply{}, false
	}

	params = ex.Correct(params, text, t.now)
	t.sess.Append(core.NewTextContent(core.RoleUser, text))
	return t.confirm(name, params), true
}

// affirm executes the pending action, or one inferred from the previous
// substantive request, without a model round trip.
func (t *turn) affirm(text string) (Reply, bool) {
	if !t.c.opts.ForceExecuteOnYes {
		if t.sess.Pending == nil {
			return Reply{}, false
		}
		pending := t.sess.Pending.Clone()
		t.sess.Append(core.NewTextContent(core.RoleUser, text))
		return t.executeViaModel(pending), true
	}

	var (
		name   string
		params map[string]any
	)
	if p := t.sess.Pending; p != nil {
		name, params = p.Action, core.CloneParams(p.Params)
	} else {
		// "Ok, Material ..." names a new request rather than confirming an old one.
		if _, _, ok := t.c.infer(text, t.now); ok {
			return Reply{}, false
		}
		var ok bool
		if name, params, ok = t.c.inferFromHistory(t.sess.History, t.now); !ok {
			return Reply{}, false
		}
	}

	t.sess.Append(core.NewTextContent(core.RoleUser, text))
	t.origin = originFallback
	return t.finalize(name, params), true
}

// collect stores text as the value of the next missing field. A value that
// still fails validation is asked for again.
func (t *turn) collect(text string) Reply {
	t.sess.Append(core.NewTextContent(core.RoleUser, text))

	name := t.sess.Pending.Action
	params := core.CloneParams(t.sess.Pending.Params)
	params[t.sess.MissingFields[0]] = strings.TrimSpace(text)
	params = t.canonical(name, params)

	t.action = name
	if v := t.c.opts.Executor.Validate(name, params); !v.OK && len(v.Missing) > 0 {
		t.phase = phaseCollect
		t.sess.SetPending(name, params, v.Missing)
		return t.say("Noch fehlt: "+labels(v.Missing)+".", CollectSuggestions)
	}
	return t.confirm(name, params)
}

// delegate hands the utterance to the language model.
func (t *turn) delegate(text string) Reply {
	t.sess.Append(core.NewTextContent(core.RoleUser, text))
	t.origin = originLLM

	resp, err := t.callModel("")
	if err != nil {
		return t.modelFailure(err)
	}

	if calls := model.FunctionCallsOf(resp); len(calls) > 0 {
		t.sess.Append(resp.Content)
		return t.runToolCalls(calls, nil)
	}

	answer := strings.TrimSpace(model.TextOf(resp))
	if answer != "" && t.c.replies.confirmQuestion.MatchString(answer) {
		if name, params, ok := t.c.inferFromHistory(t.sess.History, t.now); ok {
			t.action = name
			t.sess.SetPending(name, params, nil)
		}
		t.phase = phaseConfirm
		return t.say(answer, ConfirmSuggestions)
	}

	name, params, ok := t.c.inferFromHistory(t.sess.History, t.now)
	if !ok {
		name, params, ok = t.c.infer(text, t.now)
	}
	if ok {
		t.origin = originFallback
		if v := t.c.opts.Executor.Validate(name, params); !v.OK && len(v.Missing) > 0 {
			return t.askMissing(name, params, v.Missing)
		}
		return t.confirm(name, params)
	}

	if answer == "" {
		answer = flow.Fallback
	}
	return t.say(answer, nil)
}

// executeViaModel asks the model to emit the function call for a confirmed
// action and falls back to deterministic execution.
func (t *turn) executeViaModel(pending *core.PendingAction) Reply {
	t.action = pending.Action

	resp, err := t.callModel(confirmNudge)
	if err == nil {
		if calls := model.FunctionCallsOf(resp); len(calls) > 0 {
			t.origin = originLLM
			t.sess.Append(resp.Content)
			return t.runToolCalls(calls, pending)
		}
	} else {
		t.c.opts.Logger.Warn("controller.model.error", "session", t.sess.ID, "error", err.Error())
	}

	t.origin = originFallback
	return t.finalize(pending.Action, pending.Params)
}

// runToolCalls executes model-requested actions and asks the model for the
// completion text. Malformed or empty arguments fall back to the parameters
// already known for that action.
func (t *turn) runToolCalls(calls []core.FunctionCall, pending *core.PendingAction) Reply {
	t.phase = phaseExecute

	var completions []string
	for _, call := range calls {
		t.action = call.Name
		params := parseArguments(call.Arguments)
		if len(params) == 0 {
			params = t.knownParams(call.Name, pending)
		}

		result, message, err := t.execute(call.Name, params)
		switch {
		case errors.Is(err, errAlreadyExecuted):
			t.sess.Append(core.NewFunctionResponseContent(call.ID, call.Name, result, nil))
			completions = append(completions, AlreadyDone+" "+message)
		case err != nil:
			t.sess.Append(core.NewFunctionResponseContent(call.ID, call.Name, nil, err))
		default:
			t.sess.Append(core.NewFunctionResponseContent(call.ID, call.Name, result, nil))
			completions = append(completions, DonePrefix+message)
		}
	}
	if len(completions) > 0 {
		t.sess.ClearPending()
	}

	resp, err := t.callModel("")
	if err == nil {
		if text := strings.TrimSpace(model.TextOf(resp)); text != "" {
			return t.say(text, nil)
		}
	} else {
		t.c.opts.Logger.Warn("controller.model.error", "session", t.sess.ID, "error", err.Error())
	}

	if len(completions) == 0 {
		return t.say(ExecuteFailure, FailureSuggestions)
	}
	return t.say(strings.Join(completions, " "), nil)
}

func (t *turn) knownParams(name string, pending *core.PendingAction) map[string]any {
	if pending != nil && pending.Action == name {
		return core.CloneParams(pending.Params)
	}
	if p := t.sess.Pending; p != nil && p.Action == name {
		return core.CloneParams(p.Params)
	}
	if inferred, params, ok := t.c.inferFromHistory(t.sess.History, t.now); ok && inferred == name {
		return params
	}
	return map[string]any{}
}

// finalize validates and executes an action exactly once per fingerprint.
func (t *turn) finalize(name string, params map[string]any) Reply {
	t.action = name
	params = t.canonical(name, params)

	if v := t.c.opts.Executor.Validate(name, params); !v.OK && len(v.Missing) > 0 {
		return t.askMissing(name, params, v.Missing)
	}

	t.phase = phaseExecute
	callID := core.NewID()
	args, _ := json.Marshal(params)
	t.sess.Append(core.Content{Role: core.RoleAssistant, Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: callID, Name: name, Arguments: string(args)}},
	}})

	result, message, err := t.execute(name, params)
	if errors.Is(err, errAlreadyExecuted) {
		t.sess.Append(core.NewFunctionResponseContent(callID, name, result, nil))
		t.sess.ClearPending()
		return t.say(AlreadyDone+" "+message, nil)
	}
	if err != nil {
		t.sess.Append(core.NewFunctionResponseContent(callID, name, nil, err))
		t.sess.SetPending(name, params, nil)
		return t.say(ExecuteFailure, FailureSuggestions)
	}

	t.sess.Append(core.NewFunctionResponseContent(callID, name, result, nil))
	t.sess.ClearPending()
	return t.say(DonePrefix+message, nil)
}

var errAlreadyExecuted = errors.New("action already executed")

// execute runs the action unless its fingerprint is already in the ledger.
// It returns the completion message without the "Erledigt." prefix.
func (t *turn) execute(name string, params map[string]any) (action.Result, string, error) {
	params = t.canonical(name, params)
	fp := fingerprint(name, params)

	if prior, done := t.sess.Executed[fp]; done {
		t.c.opts.Logger.Info("controller.execute.duplicate", "session", t.sess.ID, "action", name)
		return action.Result{OK: true, Message: prior}, prior, errAlreadyExecuted
	}

	result, err := t.c.opts.Executor.Execute(t.ctx, name, params)
	if err != nil {
		t.c.opts.Logger.Warn("controller.execute.error", "session", t.sess.ID, "action", name, "error", err.Error())
		return action.Result{}, "", err
	}

	message := result.Message
	if message == "" {
		if ex, ok := t.c.extractors[name]; ok {
			message = ex.Completion(result.ID, params)
		} else {
			message = "Aktion #" + result.ID + " ausgeführt."
		}
	}
	t.sess.Executed[fp] = message
	return result, message, nil
}

// canonical resolves date words, drops malformed times and lets the
// executor normalize value types so equal requests share a fingerprint.
func (t *turn) canonical(name string, params map[string]any) map[string]any {
	params = core.CloneParams(params)
	if d, ok := params["datum"].(string); ok {
		if resolved, ok := dateparse.Resolve(d, t.now); ok {
			params["datum"] = resolved
		}
	}
	if z, ok := params["zeit"].(string); ok && !dateparse.IsClock(z) {
		delete(params, "zeit")
	}
	if co, ok := t.c.opts.Executor.(coercer); ok {
		params = co.Coerce(name, params)
	}
	return params
}

func (t *turn) confirm(name string, params map[string]any) Reply {
	t.phase = phaseConfirm
	t.action = name
	t.sess.SetPending(name, params, nil)

	text := "Soll ich " + name + " ausführen?"
	if ex, ok := t.c.extractors[name]; ok {
		text = ex.Confirm(params)
	}
	return t.say(text, ConfirmSuggestions)
}

func (t *turn) askMissing(name string, params map[string]any, missing []string) Reply {
	t.phase = phaseCollect
	t.action = name
	t.sess.SetPending(name, params, missing)
	return t.say("Es fehlen Pflichtangaben ("+labels(missing)+"). Was soll ich eintragen?", CollectSuggestions)
}

func (t *turn) modelFailure(err error) Reply {
	t.c.opts.Logger.Warn("controller.model.error", "session", t.sess.ID, "error", err.Error())
	return t.say(ModelFailure, FailureSuggestions)
}

// say appends the assistant message and builds the reply.
func (t *turn) say(text string, suggestions []string) Reply {
	t.sess.Append(core.NewTextContent(core.RoleAssistant, text))
	return Reply{Text: text, SuggestedReplies: append([]string(nil), suggestions...)}
}

// callModel performs one bounded model call over the session history.
func (t *turn) callModel(extraInstructions string) (model.Response, error) {
	if err := t.limiter.Increment(); err != nil {
		return model.Response{}, err
	}

	ctx := t.ctx
	if d := t.c.opts.ModelTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	instructions := t.c.opts.Instructions
	if extraInstructions != "" {
		instructions = strings.TrimSpace(instructions + "\n\n" + extraInstructions)
	}

	return model.Generate(ctx, t.c.model, model.Request{
		Instructions: instructions,
		Contents:     append([]core.Content(nil), t.sess.History...),
		Tools:        t.c.opts.Executor.Definitions(),
	})
}

// infer picks the highest ranked confident action trigger that has an
// extractor and extracts its parameters from text.
func (c *Controller) infer(text string, now time.Time) (string, map[string]any, bool) {
	for _, m := range c.opts.Classifier.Classify(text) {
		if !intent.IsConfident(m, c.opts.Threshold) {
			continue
		}
		if ex, ok := c.extractors[m.TaskType]; ok {
			return m.TaskType, ex.Extract(text, now), true
		}
	}
	return "", nil, false
}

// inferFromHistory infers from the latest user message that is not a short
// acknowledgement.
func (c *Controller) inferFromHistory(history []core.Content, now time.Time) (string, map[string]any, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != core.RoleUser {
			continue
		}
		text := msg.Text()
		if c.replies.acknowledgement.MatchString(text) {
			continue
		}
		return c.infer(text, now)
	}
	return "", nil, false
}

func (c *Controller) parseConfirm(text string) (string, map[string]any, bool) {
	for _, ex := range c.order {
		if params, ok := ex.ParseConfirm(text); ok {
			return ex.Action(), params, true
		}
	}
	return "", nil, false
}

// fingerprint identifies an action invocation. encoding/json sorts map keys,
// so equal parameter sets serialize identically.
func fingerprint(name string, params map[string]any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return name + ":" + util.FormatValue(params)
	}
	return name + ":" + string(b)
}

// parseArguments decodes tool arguments; malformed JSON yields no arguments.
func parseArguments(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil
	}
	return params
}

func labels(fields []string) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if l, ok := FieldLabels[f]; ok {
			out[i] = l
		} else {
			out[i] = f
		}
	}
	return strings.Join(out, "/")
}
