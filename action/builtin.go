package action

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/dialogmesh/internal/util"
)

// Built-in action names.
const (
	CreateRapport  = "CREATE_RAPPORT"
	CreateCustomer = "CREATE_CUSTOMER"
	AddMaterial    = "ADD_MATERIAL"
	SetAppointment = "SET_APPOINTMENT"
	CreateProject  = "CREATE_PROJECT"
)

// RapportParams are the CREATE_RAPPORT parameters.
type RapportParams struct {
	Kunde        string `json:"kunde" description:"Name des Kunden" minLength:"1"`
	Datum        string `json:"datum,omitempty" description:"Datum im Format YYYY-MM-DD"`
	Zeit         string `json:"zeit,omitempty" description:"Uhrzeit HH:MM"`
	Beschreibung string `json:"beschreibung,omitempty" description:"Ausgeführte Arbeiten"`
}

// CustomerParams are the CREATE_CUSTOMER parameters.
type CustomerParams struct {
	FirstName string `json:"firstName" description:"Vorname" minLength:"1"`
	LastName  string `json:"lastName" description:"Nachname" minLength:"1"`
	Telefon   string `json:"telefon,omitempty" description:"Telefonnummer"`
	Adresse   string `json:"adresse,omitempty" description:"Postadresse"`
}

// MaterialParams are the ADD_MATERIAL parameters.
type MaterialParams struct {
	Kunde   string   `json:"kunde" description:"Name des Kunden" minLength:"1"`
	Artikel string   `json:"artikel" description:"Materialbezeichnung" minLength:"1"`
	Menge   float64  `json:"menge" description:"Menge"`
	Einheit string   `json:"einheit,omitempty" description:"Einheit, z. B. Stk oder m"`
	Preis   *float64 `json:"preis,omitempty" description:"Stückpreis"`
}

// AppointmentParams are the SET_APPOINTMENT parameters.
type AppointmentParams struct {
	Kunde string `json:"kunde" description:"Name des Kunden" minLength:"1"`
	Datum string `json:"datum" description:"Datum im Format YYYY-MM-DD" minLength:"4"`
	Zeit  string `json:"zeit" description:"Uhrzeit HH:MM" minLength:"3"`
	Ort   string `json:"ort,omitempty" description:"Ort des Termins"`
	Zweck string `json:"zweck,omitempty" description:"Anlass"`
}

// ProjectParams are the CREATE_PROJECT parameters.
type ProjectParams struct {
	Kunde        string `json:"kunde" description:"Name des Kunden" minLength:"1"`
	Projekt      string `json:"projekt" description:"Projektname" minLength:"1"`
	Start        string `json:"start,omitempty" description:"Startdatum YYYY-MM-DD"`
	Beschreibung string `json:"beschreibung,omitempty" description:"Kurzbeschreibung"`
}

type sequence struct{ n atomic.Int64 }

func (s *sequence) next() string { return strconv.FormatInt(s.n.Add(1), 10) }

// NewDefaultRegistry returns a registry with the built-in actions. Each
// registry numbers its records independently, starting at 1.
func NewDefaultRegistry(optFns ...func(o *Options)) *Registry {
	ids := &sequence{}

	return NewRegistry(optFns...).MustRegister(
		NewTypedAction(CreateRapport, "Legt einen Tagesrapport für einen Kunden an.",
			func(_ context.Context, p RapportParams) (Result, error) {
				id := ids.next()
				return Result{OK: true, ID: id, Message: "Rapport #" + id + " für " + p.Kunde + " angelegt."}, nil
			}),
		NewTypedAction(CreateCustomer, "Legt ein Kundendossier an.",
			func(_ context.Context, p CustomerParams) (Result, error) {
				id := ids.next()
				name := strings.TrimSpace(p.FirstName + " " + p.LastName)
				return Result{OK: true, ID: id, Message: "Kundendossier #" + id + " für " + name + " angelegt."}, nil
			}),
		NewTypedAction(AddMaterial, "Erfasst verbrauchtes Material für einen Kunden.",
			func(_ context.Context, p MaterialParams) (Result, error) {
				id := ids.next()
				return Result{OK: true, ID: id, Message: "Material „" + p.Artikel + "“ (" + util.FormatValue(p.Menge) + ") für " + p.Kunde + " erfasst."}, nil
			}),
		NewTypedAction(SetAppointment, "Vereinbart einen Termin mit einem Kunden.",
			func(_ context.Context, p AppointmentParams) (Result, error) {
				id := ids.next()
				msg := "Termin #" + id + " für " + p.Kunde + " am " + p.Datum + " um " + p.Zeit
				if p.Ort != "" {
					msg += " @ " + p.Ort
				}
				return Result{OK: true, ID: id, Message: msg + "."}, nil
			}),
		NewTypedAction(CreateProject, "Legt ein Projekt für einen Kunden an.",
			func(_ context.Context, p ProjectParams) (Result, error) {
				id := ids.next()
				return Result{OK: true, ID: id, Message: "Projekt #" + id + " „" + p.Projekt + "“ für " + p.Kunde + " angelegt."}, nil
			}),
	)
}
