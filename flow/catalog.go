package flow

import "fmt"

// Flow ids of the built-in catalog.
const (
	CreateCustomer = "create_customer"
	Invoice        = "invoice"
	Rapport        = "rapport"
)

// DefaultCatalog returns the built-in customer, invoice and rapport flows.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(customerFlow(), invoiceFlow(), rapportFlow())
	if err != nil {
		panic(err)
	}
	return c
}

func customerFlow() *Definition {
	return &Definition{
		ID:       CreateCustomer,
		TaskType: CreateCustomer,
		Slots: []Slot{
			{ID: "firstName", Prompt: "Wie lautet der Vorname?", Validate: MinLength(1)},
			{ID: "lastName", Prompt: "Wie lautet der Nachname?", Validate: MinLength(1)},
			{ID: "address", Prompt: "Wie lautet die Adresse?", Validate: MinLength(3)},
			{ID: "phone", Prompt: "Wie lautet die Telefonnummer?", Validate: Matches(`^[+0-9 ()-]{7,}$`)},
			{ID: "email", Prompt: "Wie lautet die E-Mail-Adresse?", Validate: Email()},
			{ID: "hasProject", Prompt: "Gibt es bereits ein Projekt? (ja/nein)", Validate: YesNo()},
		},
		Summarize: func(v map[string]any) string {
			return fmt.Sprintf("Kundendossier angelegt: %v %v, %v, Tel %v, %v, Projekt: %v.",
				v["firstName"], v["lastName"], v["address"], v["phone"], v["email"], v["hasProject"])
		},
	}
}

func invoiceFlow() *Definition {
	return &Definition{
		ID:       Invoice,
		TaskType: Invoice,
		Slots: []Slot{
			{ID: "project", Prompt: "Für welches Projekt soll die Rechnung erstellt werden?", Validate: MinLength(1)},
		},
		Summarize: func(v map[string]any) string {
			return fmt.Sprintf("Rechnung wird erstellt für Projekt %q.", v["project"])
		},
	}
}

func rapportFlow() *Definition {
	return &Definition{
		ID:       Rapport,
		TaskType: Rapport,
		Slots: []Slot{
			{ID: "project", Prompt: "Bitte Projektname:", Validate: MinLength(1)},
			{ID: "worker", Prompt: "Bitte Mitarbeitername:", Validate: MinLength(1)},
			{ID: "date", Prompt: "Bitte heutiges Datum:", Validate: Date()},
			{ID: "locationWeather", Prompt: "Wo hast du heute gearbeitet und wie war das Wetter?", Validate: MinLength(1)},
			{ID: "timeRange", Prompt: "Wann hast du angefangen und wann aufgehört (inkl. Pausen)?", Validate: MinLength(1)},
			{ID: "tasks", Prompt: "Was genau hast du heute gemacht?", Validate: MinLength(1)},
			{ID: "progress", Prompt: "Gab es Fortschritte oder Wiederholungen von Arbeiten?", Validate: MinLength(1)},
			{ID: "attendance", Prompt: "Wer war heute im Team/auf der Baustelle anwesend?", Validate: MinLength(1)},
			{ID: "contractors", Prompt: "Wurden Fremdfirmen eingesetzt oder besondere Zeiten erfasst?", Validate: MinLength(1)},
			{ID: "materialsMachines", Prompt: "Welches Material und welche Maschinen kamen zum Einsatz?", Validate: MinLength(1)},
			{ID: "deliveriesDefects", Prompt: "Gab es Lieferungen, Defekte oder Engpässe?", Validate: MinLength(1)},
			{ID: "issuesSafety", Prompt: "Gab es Probleme, Sicherheitsvorfälle oder Abweichungen?", Validate: MinLength(1)},
			{ID: "tomorrowPrep", Prompt: "Was sollte morgen vorbereitet werden oder mitgenommen werden?", Validate: MinLength(1)},
			{ID: "notes", Prompt: "Gibt es sonstige Notizen oder Hinweise?", Validate: Optional()},
			{ID: "photos", Prompt: "Möchtest du Fotos zu diesem Rapport erfassen? (Beschreibung/ja/nein)", Validate: Optional()},
			{ID: "signature", Prompt: "Durchlesen und bestätigen bitte mit Unterschrift. (Antworte: unterschrieben)", Validate: Matches(`unterschr`)},
		},
		Summarize: func(v map[string]any) string {
			return fmt.Sprintf("Rapport abgeschlossen für Projekt %v. Mitarbeiter: %v. Datum: %v.",
				v["project"], v["worker"], v["date"])
		},
	}
}
