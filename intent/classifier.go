// Package intent scores candidate task types against canonical text using a
// declarative pattern table. The classifier only ranks; callers decide which
// confidence threshold is good enough for them.
package intent

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/normalize"
)

// DefaultThreshold is the score at which a match counts as confident.
const DefaultThreshold = 0.7

// Confidence is an informational band attached to a pattern.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Pattern is one row of the intent table.
type Pattern struct {
	TaskType   string     `yaml:"task" json:"task"`
	Expr       string     `yaml:"expr" json:"expr"`
	Score      float64    `yaml:"score" json:"score"`
	Confidence Confidence `yaml:"confidence" json:"confidence"`
}

// Match is the best scoring pattern hit for one task type.
type Match struct {
	TaskType      string     `json:"task_type"`
	Score         float64    `json:"score"`
	Confidence    Confidence `json:"confidence"`
	OriginalText  string     `json:"original_text"`
	CanonicalText string     `json:"canonical_text"`
	Pattern       string     `json:"pattern"`
}

// SignalKind identifies a diagnostic signal emitted during classification.
type SignalKind string

const (
	SignalInputProcessing SignalKind = "INPUT_PROCESSING"
	SignalIntentScores    SignalKind = "INTENT_SCORES"
)

// Signal carries debugging information to an Observer.
type Signal struct {
	Kind    SignalKind
	Text    string
	Matches []Match
}

// Observer receives diagnostic signals. It must not block.
type Observer func(Signal)

// Options configures a Classifier.
type Options struct {
	Normalizer *normalize.Normalizer
	Observer   Observer
	Logger     logging.Logger
}

type compiled struct {
	Pattern
	re    *regexp.Regexp
	order int
}

// Classifier ranks task types for an utterance. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	patterns []compiled
	opts     Options
}

// New compiles the pattern table. Task types keep the order in which they
// first appear; that order breaks score ties.
func New(patterns []Pattern, optFns ...func(o *Options)) (*Classifier, error) {
	opts := Options{
		Normalizer: normalize.New(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	order := map[string]int{}
	cs := make([]compiled, 0, len(patterns))
	for _, p := range patterns {
		if p.TaskType == "" {
			return nil, fmt.Errorf("intent pattern %q: missing task type", p.Expr)
		}
		if p.Score < 0 || p.Score > 1 {
			return nil, fmt.Errorf("intent pattern %q: score %v out of range [0,1]", p.Expr, p.Score)
		}
		re, err := regexp.Compile("(?i)" + p.Expr)
		if err != nil {
			return nil, fmt.Errorf("intent pattern %q: %w", p.Expr, err)
		}
		if _, ok := order[p.TaskType]; !ok {
			order[p.TaskType] = len(order)
		}
		if p.Confidence == "" {
			p.Confidence = ConfidenceLow
		}
		cs = append(cs, compiled{Pattern: p, re: re, order: order[p.TaskType]})
	}
	return &Classifier{patterns: cs, opts: opts}, nil
}

// MustNew is like New but panics on an invalid table.
func MustNew(patterns []Pattern, optFns ...func(o *Options)) *Classifier {
	c, err := New(patterns, optFns...)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify normalizes raw and ranks every task type with at least one hit.
func (c *Classifier) Classify(raw string) []Match {
	return c.rank(raw, c.opts.Normalizer.Normalize(raw))
}

// ClassifyCanonical ranks already-canonical text.
func (c *Classifier) ClassifyCanonical(canonical string) []Match {
	return c.rank(canonical, canonical)
}

func (c *Classifier) rank(original, canonical string) []Match {
	c.emit(Signal{Kind: SignalInputProcessing, Text: canonical})

	best := map[string]int{}
	var matches []Match
	var orders []int
	for _, p := range c.patterns {
		if !p.re.MatchString(canonical) {
			continue
		}
		m := Match{
			TaskType:      p.TaskType,
			Score:         p.Score,
			Confidence:    p.Confidence,
			OriginalText:  original,
			CanonicalText: canonical,
			Pattern:       p.Expr,
		}
		if i, ok := best[p.TaskType]; ok {
			if p.Score > matches[i].Score {
				matches[i] = m
			}
			continue
		}
		best[p.TaskType] = len(matches)
		matches = append(matches, m)
		orders = append(orders, p.order)
	}

	idx := make([]int, len(matches))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ma, mb := matches[idx[a]], matches[idx[b]]
		if ma.Score != mb.Score {
			return ma.Score > mb.Score
		}
		return orders[idx[a]] < orders[idx[b]]
	})
	ranked := make([]Match, len(matches))
	for i, j := range idx {
		ranked[i] = matches[j]
	}

	c.opts.Logger.Debug("intent.classified", "text", canonical, "matches", len(ranked))
	c.emit(Signal{Kind: SignalIntentScores, Text: canonical, Matches: ranked})
	return ranked
}

// emit forwards a signal to the observer. Observer panics are swallowed so
// debugging hooks can never change classification results.
func (c *Classifier) emit(s Signal) {
	if c.opts.Observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Warn("intent.observer.panic", "kind", s.Kind, "panic", fmt.Sprint(r))
		}
	}()
	cp := s
	if s.Matches != nil {
		cp.Matches = append([]Match(nil), s.Matches...)
	}
	c.opts.Observer(cp)
}

// Best returns the top ranked match, if any.
func Best(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// Top returns at most n matches from the head of the ranking.
func Top(matches []Match, n int) []Match {
	if n < 0 {
		n = 0
	}
	if len(matches) < n {
		n = len(matches)
	}
	return matches[:n]
}

// IsConfident reports whether the match reaches threshold.
func IsConfident(m Match, threshold float64) bool {
	return m.Score >= threshold
}
