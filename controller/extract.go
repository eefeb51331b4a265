package controller

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/dialogmesh/internal/dateparse"
	"github.com/hupe1980/dialogmesh/internal/util"
)

// Extractor recovers one action's parameters from free text and renders the
// confirmation and completion wording for it. ParseConfirm must accept every
// text Confirm produces.
type Extractor interface {
	// Action is the executor name, e.g. CREATE_RAPPORT.
	Action() string

	// Extract pulls parameters out of a user request. Absent values are
	// omitted from the map.
	Extract(text string, now time.Time) map[string]any

	// Correct applies a correction utterance ("Nein, 15:00") to params and
	// returns the updated copy.
	Correct(params map[string]any, text string, now time.Time) map[string]any

	// Confirm renders the confirmation question.
	Confirm(params map[string]any) string

	// ParseConfirm recovers the parameters from a confirmation question.
	ParseConfirm(text string) (map[string]any, bool)

	// Completion renders the completion sentence used when the executor
	// returns no message of its own.
	Completion(id string, params map[string]any) string
}

// PatternExtractor is an Extractor assembled from regular expressions and
// text/template strings. Named groups of ConfirmPattern become parameters.
type PatternExtractor struct {
	Name               string
	ConfirmTemplate    string
	CompletionTemplate string
	ConfirmPattern     *regexp.Regexp
	ExtractFunc        func(text string, now time.Time) map[string]any
	CorrectFunc        func(params map[string]any, text string, now time.Time) map[string]any
}

// Action implements Extractor.
func (e *PatternExtractor) Action() string { return e.Name }

// Extract implements Extractor.
func (e *PatternExtractor) Extract(text string, now time.Time) map[string]any {
	if e.ExtractFunc == nil {
		return map[string]any{}
	}
	return compact(e.ExtractFunc(text, now))
}

// Correct implements Extractor.
func (e *PatternExtractor) Correct(params map[string]any, text string, now time.Time) map[string]any {
	out := copyParams(params)
	if e.CorrectFunc == nil {
		return out
	}
	return compact(e.CorrectFunc(out, text, now))
}

// Confirm implements Extractor.
func (e *PatternExtractor) Confirm(params map[string]any) string {
	return render(e.ConfirmTemplate, params)
}

// ParseConfirm implements Extractor.
func (e *PatternExtractor) ParseConfirm(text string) (map[string]any, bool) {
	if e.ConfirmPattern == nil {
		return nil, false
	}
	m := e.ConfirmPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	params := map[string]any{}
	for i, name := range e.ConfirmPattern.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		if v := strings.TrimSpace(m[i]); v != "" {
			params[name] = v
		}
	}
	return params, true
}

// Completion implements Extractor.
func (e *PatternExtractor) Completion(id string, params map[string]any) string {
	data := copyParams(params)
	data["id"] = id
	return render(e.CompletionTemplate, data)
}

func render(tmpl string, params map[string]any) string {
	out, err := util.RenderTemplate(tmpl, params)
	if err != nil {
		return tmpl
	}
	return out
}

var (
	clockRe    = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)
	dateRe     = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|\d{1,2}\.\d{1,2}\.\d{4}|heute|morgen|montag|dienstag|mittwoch|donnerstag|freitag|samstag|sonntag)\b`)
	placeRe    = regexp.MustCompile(`(?i)\b(?:im|in\s+der|in)\s+([A-Za-zÄÖÜäöüß][A-Za-zÄÖÜäöüß\- ]*)`)
	numberRe   = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\b`)
	nameWordRe = regexp.MustCompile(`^[\p{L}][\p{L}'\-]*$`)
	knownItems = regexp.MustCompile(`(?i)\b(schrauben|dübel|kabel|leitung|rohr)`)
	materialRe = regexp.MustCompile(`(?i)\bmaterial\s+(.+)`)
)

var stopWords = map[string]bool{
	"am": true, "um": true, "im": true, "in": true, "bei": true, "mit": true,
	"für": true, "von": true, "der": true, "die": true, "das": true, "den": true,
	"und": true, "ab": true, "bis": true, "uhr": true, "stück": true, "stk": true,
}

// wordsAfter returns up to max name-like words following the first of the
// given prepositions. Scanning stops at digits, date words and stop words.
func wordsAfter(text string, prepositions []string, max int) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if !containsFold(prepositions, trimPunct(f)) {
			continue
		}
		if words := takeWords(fields[i+1:], max); len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

func takeWords(fields []string, max int) []string {
	var words []string
	for _, f := range fields {
		if len(words) == max {
			break
		}
		raw := strings.TrimRight(f, ",.;:!?")
		w := trimPunct(f)
		lower := strings.ToLower(w)
		if !nameWordRe.MatchString(w) || stopWords[lower] || dateparse.IsDateWord(lower) {
			break
		}
		words = append(words, w)
		if raw != f {
			// trailing punctuation ends the phrase
			break
		}
	}
	return words
}

func trimPunct(s string) string {
	return strings.Trim(s, ",.;:!?\"'„“”()")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func findClock(text string) string {
	if m := clockRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// findDate returns the first date expression, resolved to YYYY-MM-DD when
// possible and kept verbatim otherwise.
func findDate(text string, now time.Time) string {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if d, ok := dateparse.Resolve(m[1], now); ok {
		return d
	}
	return m[1]
}

func findPlace(text string) string {
	m := placeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Join(takeWords(strings.Fields(m[1]), 3), " ")
}

// findQuantity returns the first number that is not part of a time or date.
func findQuantity(text string) (float64, bool) {
	text = clockRe.ReplaceAllString(text, " ")
	text = dateRe.ReplaceAllString(text, " ")
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// findArticle prefers the words after "Material", then a known item name.
func findArticle(text string) string {
	if m := materialRe.FindStringSubmatch(text); m != nil {
		if words := takeWords(strings.Fields(m[1]), 3); len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	if m := knownItems.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// correctSchedule applies time, date and place corrections.
func correctSchedule(params map[string]any, text string, now time.Time, withPlace bool) map[string]any {
	if z := findClock(text); z != "" {
		params["zeit"] = z
	}
	if d := findDate(text, now); d != "" {
		params["datum"] = d
	}
	if withPlace {
		if o := findPlace(text); o != "" {
			params["ort"] = o
		}
	}
	return params
}

func compact(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	return out
}
