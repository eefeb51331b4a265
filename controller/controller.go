package controller

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/intent"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/hupe1980/dialogmesh/model/echo"
	"github.com/hupe1980/dialogmesh/session"
	"github.com/hupe1980/dialogmesh/vocabulary"
)

// Fixed replies.
const (
	CancelReply    = "Okay, abgebrochen."
	AlreadyDone    = "Erledigt. (bereits ausgeführt)"
	DonePrefix     = "Erledigt. "
	ModelFailure   = "Es gab gerade ein Problem mit dem KI-Dienst. Ich versuche es erneut oder du kannst mit „Ja“ bestätigen, dann führe ich es direkt aus."
	ExecuteFailure = "Das hat leider nicht geklappt. Soll ich es noch einmal versuchen?"

	// DefaultInstructions is the system prompt sent with every model call.
	DefaultInstructions = `Du bist ein Assistent für Handwerksbetriebe. Du hilfst beim Erfassen von Rapporten, Terminen, Material und Kundendossiers.
Antworte kurz auf Deutsch. Bevor du eine Aktion ausführst, fasse sie in einem Satz zusammen und frage "Passt das?".
Rufe eine Funktion erst auf, wenn der Nutzer bestätigt hat oder alle Angaben eindeutig sind.`

	maxRetryAttempts = 2

	confirmNudge = "Der Nutzer hat bestätigt. Antworte jetzt ausschließlich mit einem function call, kein Fließtext."
)

// Suggested reply sets.
var (
	ConfirmSuggestions = []string{"Ja", "Nein", "Abbrechen"}
	FailureSuggestions = []string{"Ja", "Abbrechen"}
	CollectSuggestions = []string{"Abbrechen"}
)

// FieldLabels are the German labels used when asking for missing fields.
var FieldLabels = map[string]string{
	"firstName": "Vorname",
	"lastName":  "Nachname",
	"kunde":     "Kunde",
	"artikel":   "Artikel",
	"menge":     "Menge",
	"datum":     "Datum",
	"zeit":      "Zeit",
	"ort":       "Ort",
	"projekt":   "Projekt",
}

// Reply is the controller's answer to one user turn.
type Reply struct {
	Text             string   `json:"text"`
	SuggestedReplies []string `json:"suggestions,omitempty"`
}

// Executor validates and runs actions. *action.Registry implements it.
type Executor interface {
	Validate(name string, params map[string]any) action.Validation
	Execute(ctx context.Context, name string, params map[string]any) (action.Result, error)
	Definitions() []model.ToolDefinition
}

// coercer is implemented by executors that canonicalize parameter types.
type coercer interface {
	Coerce(name string, params map[string]any) map[string]any
}

// Options configures a Controller.
type Options struct {
	// Model is the language-model collaborator. Defaults to the offline echo model.
	Model model.Model
	// Executor runs actions. Defaults to action.NewDefaultRegistry.
	Executor Executor
	// Store holds conversation sessions. Defaults to an in-memory store.
	Store core.SessionStore
	// Extractors infer actions from free text. Defaults to DefaultExtractors.
	Extractors []Extractor
	// Classifier ranks action triggers. Defaults to the vocabulary action classifier.
	Classifier *intent.Classifier
	// Threshold is the minimum trigger score for inference.
	Threshold float64
	// Replies holds the reply vocabularies. Defaults to the embedded vocabulary.
	Replies vocabulary.Replies
	// Instructions is the system prompt.
	Instructions string
	// ModelTimeout bounds each model call including its retry.
	ModelTimeout time.Duration
	// RetryAttempts is the total number of attempts for transient model
	// failures. Values below 2 disable retries; values above 2 are clamped
	// to a single retry.
	RetryAttempts int
	// RetryDelay is the pause before the retry.
	RetryDelay time.Duration
	// MaxModelCalls caps model calls per turn.
	MaxModelCalls int
	// ForceExecuteOnYes executes a confirmed action deterministically instead
	// of asking the model for the function call.
	ForceExecuteOnYes bool
	Logger            logging.Logger
	Now               func() time.Time
}

type replyPatterns struct {
	affirm, negate, cancel, acknowledgement, confirmQuestion *regexp.Regexp
}

// Controller orchestrates the confirm, correct, cancel and execute lifecycle
// of free-form requests. It is safe for concurrent use; turns of the same
// session are serialized.
type Controller struct {
	opts       Options
	model      model.Model
	extractors map[string]Extractor
	order      []Extractor
	replies    replyPatterns
}

// New creates a Controller.
func New(optFns ...func(o *Options)) (*Controller, error) {
	opts := Options{
		Threshold:         intent.DefaultThreshold,
		Instructions:      DefaultInstructions,
		ModelTimeout:      15 * time.Second,
		RetryAttempts:     2,
		RetryDelay:        500 * time.Millisecond,
		MaxModelCalls:     2,
		ForceExecuteOnYes: true,
		Logger:            logging.NoOpLogger{},
		Now:               time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.RetryAttempts > maxRetryAttempts {
		opts.RetryAttempts = maxRetryAttempts
	}
	if opts.Model == nil {
		opts.Model = echo.New()
	}
	if opts.Executor == nil {
		opts.Executor = action.NewDefaultRegistry(func(o *action.Options) { o.Logger = opts.Logger })
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Extractors == nil {
		opts.Extractors = DefaultExtractors()
	}
	if opts.Replies == (vocabulary.Replies{}) {
		opts.Replies = vocabulary.Default().Replies
	}
	if opts.Classifier == nil {
		c, err := vocabulary.Default().ActionClassifier(func(o *intent.Options) { o.Logger = opts.Logger })
		if err != nil {
			return nil, fmt.Errorf("build action classifier: %w", err)
		}
		opts.Classifier = c
	}

	replies, err := compileReplies(opts.Replies)
	if err != nil {
		return nil, err
	}

	m := opts.Model
	if opts.RetryAttempts > 1 {
		m = model.WithRetry(m, func(o *model.RetryOptions) {
			o.MaxAttempts = opts.RetryAttempts
			o.Delay = opts.RetryDelay
			o.Logger = opts.Logger
		})
	}

	c := &Controller{
		opts:       opts,
		model:      m,
		extractors: make(map[string]Extractor, len(opts.Extractors)),
		replies:    replies,
	}
	for _, ex := range opts.Extractors {
		if _, dup := c.extractors[ex.Action()]; dup {
			return nil, fmt.Errorf("duplicate extractor for %s", ex.Action())
		}
		c.extractors[ex.Action()] = ex
		c.order = append(c.order, ex)
	}

	return c, nil
}

func compileReplies(r vocabulary.Replies) (replyPatterns, error) {
	var errs []error
	compile := func(name, expr string) *regexp.Regexp {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("replies.%s: %w", name, err))
		}
		return re
	}
	p := replyPatterns{
		affirm:          compile("affirm", r.Affirm),
		negate:          compile("negate", r.Negate),
		cancel:          compile("cancel", r.Cancel),
		acknowledgement: compile("acknowledgement", r.Acknowledgement),
		confirmQuestion: compile("confirm_question", r.ConfirmQuestion),
	}
	return p, errors.Join(errs...)
}

// HandleUserText processes one user utterance. Every conversational outcome,
// including model failures, is a Reply; the error is reserved for a failing
// session store.
func (c *Controller) HandleUserText(ctx context.Context, text, sessionID string) (Reply, error) {
	sess, err := c.opts.Store.GetOrCreate(sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session %q: %w", sessionID, err)
	}

	sess.Lock()
	defer sess.Unlock()

	t := &turn{
		c:       c,
		ctx:     ctx,
		sess:    sess,
		now:     c.opts.Now(),
		limiter: core.NewModelLimiter(c.opts.MaxModelCalls),
		phase:   phaseReply,
		origin:  originFallback,
	}
	start := time.Now()
	reply := t.handle(text)

	c.opts.Logger.Info("controller.turn",
		"session", sessionID,
		"phase", t.phase,
		"origin", t.origin,
		"action", t.action,
		"model_calls", t.limiter.Count(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return reply, nil
}

// Reset forgets the session.
func (c *Controller) Reset(sessionID string) error {
	return c.opts.Store.Reset(sessionID)
}

// Session returns a snapshot of the session state.
func (c *Controller) Session(sessionID string) (*core.Session, error) {
	sess, err := c.opts.Store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()
	return sess.Clone(), nil
}
