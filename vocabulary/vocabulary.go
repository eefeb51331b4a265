// Package vocabulary holds the data-only tables (synonyms, intent patterns,
// action triggers and reply vocabularies) that drive matching. New vocabulary
// is a data change: edit the YAML, not the code.
package vocabulary

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dialogmesh/intent"
	"github.com/hupe1980/dialogmesh/normalize"
)

//go:embed default.yaml
var defaultYAML []byte

// Replies are the regular expressions the controller uses to recognise
// short conversational answers.
type Replies struct {
	Affirm          string `yaml:"affirm"`
	Negate          string `yaml:"negate"`
	Cancel          string `yaml:"cancel"`
	Acknowledgement string `yaml:"acknowledgement"`
	ConfirmQuestion string `yaml:"confirm_question"`
}

// Vocabulary is the full set of matching tables.
type Vocabulary struct {
	Synonyms []normalize.SynonymGroup `yaml:"synonyms"`
	Intents  []intent.Pattern         `yaml:"intents"`
	Actions  []intent.Pattern         `yaml:"actions"`
	Replies  Replies                  `yaml:"replies"`
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Default returns the embedded vocabulary. It is parsed once per process.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("vocabulary: embedded default is invalid: %v", err))
		}
		defaultVocab = v
	})
	return defaultVocab
}

// Load reads and validates a vocabulary document.
func Load(r io.Reader) (*Vocabulary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks that every table is usable.
func (v *Vocabulary) Validate() error {
	var errs []error
	for i, g := range v.Synonyms {
		if g.Canonical == "" {
			errs = append(errs, fmt.Errorf("synonyms[%d]: canonical is required", i))
		}
	}
	if _, err := intent.New(v.Intents); err != nil {
		errs = append(errs, fmt.Errorf("intents: %w", err))
	}
	if _, err := intent.New(v.Actions); err != nil {
		errs = append(errs, fmt.Errorf("actions: %w", err))
	}
	for name, expr := range map[string]string{
		"affirm":           v.Replies.Affirm,
		"negate":           v.Replies.Negate,
		"cancel":           v.Replies.Cancel,
		"acknowledgement":  v.Replies.Acknowledgement,
		"confirm_question": v.Replies.ConfirmQuestion,
	} {
		if expr == "" {
			errs = append(errs, fmt.Errorf("replies.%s: expression is required", name))
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("replies.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Normalizer builds a normalizer over the synonym table.
func (v *Vocabulary) Normalizer() *normalize.Normalizer {
	return normalize.New(v.Synonyms...)
}

// IntentClassifier builds a classifier over the flow intent table.
func (v *Vocabulary) IntentClassifier(optFns ...func(o *intent.Options)) (*intent.Classifier, error) {
	return v.classifier(v.Intents, optFns)
}

// ActionClassifier builds a classifier over the controller action triggers.
func (v *Vocabulary) ActionClassifier(optFns ...func(o *intent.Options)) (*intent.Classifier, error) {
	return v.classifier(v.Actions, optFns)
}

func (v *Vocabulary) classifier(patterns []intent.Pattern, optFns []func(o *intent.Options)) (*intent.Classifier, error) {
	n := v.Normalizer()
	fns := append([]func(o *intent.Options){func(o *intent.Options) { o.Normalizer = n }}, optFns...)
	return intent.New(patterns, fns...)
}
