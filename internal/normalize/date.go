package normalize

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const dateLayout = "02/01/2006"

var (
	limaOnce sync.Once
	limaLoc  *time.Location
)

// Lima returns the America/Lima location, falling back to a fixed UTC-5
// zone when tzdata is unavailable.
func Lima() *time.Location {
	limaOnce.Do(func() {
		loc, err := time.LoadLocation("America/Lima")
		if err != nil {
			loc = time.FixedZone("-05", -5*60*60)
		}
		limaLoc = loc
	})
	return limaLoc
}

var spanishDays = map[string]time.Weekday{
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miércoles": time.Wednesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sábado":    time.Saturday,
	"sabado":    time.Saturday,
	"domingo":   time.Sunday,
}

var dayNames = map[time.Weekday]string{
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
	time.Sunday:    "domingo",
}

// Date converts a spoken date to DD/MM/YYYY relative to now in Lima time.
// Accepts "mañana" or an explicit DD/MM/YYYY; dayReference ("lunes", ...)
// when present must match the resolved weekday. Past dates are rejected.
func Date(input, dayReference string, now time.Time) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("Por favor, proporciona la fecha de la cita.")
	}

	input = strings.ToLower(strings.TrimSpace(input))
	today := now.In(Lima())

	if strings.Contains(input, "mañana") || strings.Contains(input, "manana") {
		tomorrow := today.AddDate(0, 0, 1)
		if err := checkDayReference(dayReference, tomorrow.Weekday(), "Mañana es "+dayNames[tomorrow.Weekday()]); err != nil {
			return "", err
		}
		return tomorrow.Format(dateLayout), nil
	}

	parsed, err := time.ParseInLocation(dateLayout, input, Lima())
	if err != nil {
		return "", fmt.Errorf("No entendí la fecha. Por favor, usa el formato día/mes/año, como 05/08/2025, o di 'mañana'.")
	}
	ty, tm, td := today.Date()
	startOfToday := time.Date(ty, tm, td, 0, 0, 0, 0, Lima())
	if parsed.Before(startOfToday) {
		return "", fmt.Errorf("La fecha no puede ser anterior a hoy. Por favor, especifica una fecha válida.")
	}
	lead := fmt.Sprintf("La fecha %s es un %s", input, dayNames[parsed.Weekday()])
	if err := checkDayReference(dayReference, parsed.Weekday(), lead); err != nil {
		return "", err
	}
	return parsed.Format(dateLayout), nil
}

func checkDayReference(ref string, actual time.Weekday, lead string) error {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return nil
	}
	want, known := spanishDays[ref]
	if !known {
		return nil
	}
	if want != actual {
		return fmt.Errorf("%s, no %s. Por favor, especifica una fecha válida.", lead, ref)
	}
	return nil
}
