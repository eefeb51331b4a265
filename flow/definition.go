package flow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/dialogmesh/internal/dateparse"
)

// Validator checks a slot answer and returns its coerced value. Any
// pre-coercion (yes/no words, date formats) happens inside the validator.
type Validator func(value string, now time.Time) (any, error)

// Slot is one fixed position in a flow.
type Slot struct {
	ID       string
	Prompt   string
	Validate Validator
}

// Definition describes a structured multi-slot dialogue. Definitions are
// immutable once added to a Catalog.
type Definition struct {
	ID        string
	TaskType  string
	Slots     []Slot
	Summarize func(filled map[string]any) string
}

// Catalog is the ordered, read-only set of flows known to an engine.
type Catalog struct {
	defs  []*Definition
	byID  map[string]*Definition
	byTyp map[string]*Definition
}

// NewCatalog validates the definitions and indexes them by id and task type.
func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{byID: map[string]*Definition{}, byTyp: map[string]*Definition{}}
	for _, d := range defs {
		if d == nil || d.ID == "" {
			return nil, errors.New("flow definition without id")
		}
		if len(d.Slots) == 0 {
			return nil, fmt.Errorf("flow %q has no slots", d.ID)
		}
		if d.Summarize == nil {
			return nil, fmt.Errorf("flow %q has no summarize func", d.ID)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate flow id %q", d.ID)
		}
		seen := map[string]bool{}
		for i, s := range d.Slots {
			if s.ID == "" || s.Validate == nil {
				return nil, fmt.Errorf("flow %q slot %d: id and validator are required", d.ID, i)
			}
			if seen[s.ID] {
				return nil, fmt.Errorf("flow %q: duplicate slot id %q", d.ID, s.ID)
			}
			seen[s.ID] = true
		}
		taskType := d.TaskType
		if taskType == "" {
			taskType = d.ID
		}
		c.defs = append(c.defs, d)
		c.byID[d.ID] = d
		if _, ok := c.byTyp[taskType]; !ok {
			c.byTyp[taskType] = d
		}
	}
	return c, nil
}

// Get looks a flow up by id.
func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// ForTaskType returns the first flow registered for the task type.
func (c *Catalog) ForTaskType(taskType string) (*Definition, bool) {
	d, ok := c.byTyp[taskType]
	return d, ok
}

// Definitions returns the flows in catalog order.
func (c *Catalog) Definitions() []*Definition {
	return append([]*Definition(nil), c.defs...)
}

// MinLength accepts trimmed input of at least n runes.
func MinLength(n int) Validator {
	return func(value string, _ time.Time) (any, error) {
		if len([]rune(value)) < n {
			return nil, fmt.Errorf("mindestens %d Zeichen erforderlich", n)
		}
		return value, nil
	}
}

// Matches accepts input matching the expression (case-insensitive).
func Matches(expr string) Validator {
	re := regexp.MustCompile("(?i)" + expr)
	return func(value string, _ time.Time) (any, error) {
		if !re.MatchString(value) {
			return nil, errors.New("ungültiges Format")
		}
		return value, nil
	}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email accepts a plausible e-mail address.
func Email() Validator {
	return func(value string, _ time.Time) (any, error) {
		if !emailRe.MatchString(value) {
			return nil, errors.New("ungültige E-Mail-Adresse")
		}
		return value, nil
	}
}

var (
	yesWords = map[string]bool{"ja": true, "j": true, "yes": true}
	noWords  = map[string]bool{"nein": true, "n": true, "no": true}
)

// YesNo maps ja/j/yes to "ja" and nein/n/no to "nein".
func YesNo() Validator {
	return func(value string, _ time.Time) (any, error) {
		v := strings.ToLower(value)
		switch {
		case yesWords[v]:
			return "ja", nil
		case noWords[v]:
			return "nein", nil
		}
		return nil, errors.New("bitte mit ja oder nein antworten")
	}
}

// Date accepts relative day words and common date formats and coerces them
// to YYYY-MM-DD.
func Date() Validator {
	return func(value string, now time.Time) (any, error) {
		d, ok := dateparse.Normalize(value, now)
		if !ok || !dateparse.IsDate(d) {
			return nil, errors.New("ungültiges Datum")
		}
		return d, nil
	}
}

// Optional accepts anything, including the empty string.
func Optional() Validator {
	return func(value string, _ time.Time) (any, error) {
		return value, nil
	}
}
