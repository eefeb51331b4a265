package flow

import (
	"regexp"
	"time"
)

var (
	greetingRe = regexp.MustCompile(`(?i)\b(hallo|hi|hey|servus|grüezi|gruezi|moin|guten\s+(morgen|tag|abend))\b`)
	howAreYou  = regexp.MustCompile(`(?i)(wie\s+geht'?s|wie\s+geht\s+es|alles\s+gut|how\s+are\s+you)`)
	helpRe     = regexp.MustCompile(`(?i)(\bhilfe\b|\bhelp\b|was\s+kannst\s+du|wobei\s+kannst\s+du\s+helfen)`)
)

// Fallback is the reply for utterances nothing else understood.
const Fallback = "Verstanden. Wie kann ich helfen?"

// Help lists the built-in capabilities.
const Help = `Ich kann aktuell: Kundendossier anlegen, Rechnung erstellen, Rapport erfassen. Sag z. B. "Kundendossier anlegen", "Rechnung" oder "Rapport".`

// Smalltalk answers greetings, "how are you" and help requests. Anything
// else gets Fallback.
func Smalltalk(text string, now time.Time) string {
	switch {
	case greetingRe.MatchString(text):
		return greeting(now) + "! Wie kann ich helfen?"
	case howAreYou.MatchString(text):
		return "Mir geht's gut, danke! Wie kann ich helfen?"
	case helpRe.MatchString(text):
		return Help
	default:
		return Fallback
	}
}

func greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 5 && h < 11:
		return "Guten Morgen"
	case h >= 11 && h < 17:
		return "Guten Tag"
	case h >= 17 && h < 22:
		return "Guten Abend"
	default:
		return "Hallo"
	}
}
