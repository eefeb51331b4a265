package controller

import (
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/dialogmesh/action"
)

// RapportExtractor handles CREATE_RAPPORT requests such as
// "Erstelle einen Rapport für Max morgen 09:00".
func RapportExtractor() *PatternExtractor {
	return &PatternExtractor{
		Name:               action.CreateRapport,
		ConfirmTemplate:    `Ich erstelle den Rapport für {{default "Kunde" .kunde}}{{with .datum}} am {{.}}{{end}}{{with .zeit}} um {{.}}{{end}}. Passt das?`,
		CompletionTemplate: `Rapport #{{.id}} für {{default "Kunde" .kunde}} angelegt.`,
		ConfirmPattern:     regexp.MustCompile(`(?i)Rapport\s+für\s+(?P<kunde>.+?)(?:\s+am\s+(?P<datum>\S+?))?(?:\s+um\s+(?P<zeit>\d{1,2}:\d{2}))?\.(?:\s|$)`),
		ExtractFunc: func(text string, now time.Time) map[string]any {
			return map[string]any{
				"kunde": wordsAfter(text, []string{"für"}, 2),
				"datum": findDate(text, now),
				"zeit":  findClock(text),
			}
		},
		CorrectFunc: func(params map[string]any, text string, now time.Time) map[string]any {
			return correctSchedule(params, text, now, false)
		},
	}
}

// AppointmentExtractor handles SET_APPOINTMENT requests such as
// "Termin bei Anna am Freitag 14:30 im Büro".
func AppointmentExtractor() *PatternExtractor {
	return &PatternExtractor{
		Name:               action.SetAppointment,
		ConfirmTemplate:    `Ich vereinbare den Termin für {{default "Kunde" .kunde}}{{with .datum}} am {{.}}{{end}}{{with .zeit}} um {{.}}{{end}}{{with .ort}} @ {{.}}{{end}}. Passt das?`,
		CompletionTemplate: `Termin #{{.id}} für {{default "Kunde" .kunde}}{{with .datum}} am {{.}}{{end}}{{with .zeit}} um {{.}}{{end}}{{with .ort}} @ {{.}}{{end}}.`,
		ConfirmPattern:     regexp.MustCompile(`(?i)Termin\s+für\s+(?P<kunde>.+?)(?:\s+am\s+(?P<datum>\S+?))?(?:\s+um\s+(?P<zeit>\d{1,2}:\d{2}))?(?:\s+@\s+(?P<ort>[^.]+?))?\.(?:\s|$)`),
		ExtractFunc: func(text string, now time.Time) map[string]any {
			return map[string]any{
				"kunde": wordsAfter(text, []string{"bei", "mit", "für"}, 2),
				"datum": findDate(text, now),
				"zeit":  findClock(text),
				"ort":   findPlace(text),
			}
		},
		CorrectFunc: func(params map[string]any, text string, now time.Time) map[string]any {
			return correctSchedule(params, text, now, true)
		},
	}
}

// MaterialExtractor handles ADD_MATERIAL requests such as
// "Material Schrauben 200 für Max".
func MaterialExtractor() *PatternExtractor {
	return &PatternExtractor{
		Name:               action.AddMaterial,
		ConfirmTemplate:    `Ich erfasse Material „{{default "Material" .artikel}}“ ({{with .menge}}{{value .}}{{else}}?{{end}}) für {{default "Kunde" .kunde}}. Passt das?`,
		CompletionTemplate: `Material „{{default "Material" .artikel}}“ ({{with .menge}}{{value .}}{{else}}?{{end}}) für {{default "Kunde" .kunde}} erfasst.`,
		ConfirmPattern:     regexp.MustCompile(`(?i)Material\s+„(?P<artikel>[^“”]+)“\s*\((?P<menge>[^)]+)\)\s+für\s+(?P<kunde>.+?)\.(?:\s|$)`),
		ExtractFunc: func(text string, _ time.Time) map[string]any {
			params := map[string]any{
				"kunde":   wordsAfter(text, []string{"für", "bei"}, 2),
				"artikel": findArticle(text),
			}
			if menge, ok := findQuantity(text); ok {
				params["menge"] = menge
			}
			return params
		},
		CorrectFunc: func(params map[string]any, text string, now time.Time) map[string]any {
			params = correctSchedule(params, text, now, false)
			if menge, ok := findQuantity(text); ok {
				params["menge"] = menge
			}
			if artikel := findArticle(text); artikel != "" {
				params["artikel"] = artikel
			}
			return params
		},
	}
}

// CustomerExtractor handles CREATE_CUSTOMER requests such as
// "Neuer Kunde für Max Muster".
func CustomerExtractor() *PatternExtractor {
	return &PatternExtractor{
		Name:               action.CreateCustomer,
		ConfirmTemplate:    `Ich lege das Kundendossier für {{default "Vorname" .firstName}} {{default "Nachname" .lastName}} an. Passt das?`,
		CompletionTemplate: `Kundendossier #{{.id}} für {{.firstName}} {{.lastName}} angelegt.`,
		ConfirmPattern:     regexp.MustCompile(`(?i)Kundendossier\s+für\s+(?P<firstName>[\p{L}'\-]+)\s+(?P<lastName>[\p{L}'\-]+)\s+an\b`),
		ExtractFunc: func(text string, _ time.Time) map[string]any {
			params := map[string]any{}
			words := strings.Fields(wordsAfter(text, []string{"für", "von"}, 2))
			if len(words) == 2 {
				params["firstName"], params["lastName"] = words[0], words[1]
			}
			return params
		},
	}
}

// DefaultExtractors returns the built-in extractors. Their order decides
// which confirmation wording ParseConfirm tries first.
func DefaultExtractors() []Extractor {
	return []Extractor{
		RapportExtractor(),
		AppointmentExtractor(),
		MaterialExtractor(),
		CustomerExtractor(),
	}
}
