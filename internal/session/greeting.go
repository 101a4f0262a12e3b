package session

import (
	"time"

	"github.com/multiservicioscall/mia-agent/internal/normalize"
)

// Greeting returns the salutation appropriate for the current hour in Lima.
func Greeting(now time.Time) string {
	switch hour := now.In(normalize.Lima()).Hour(); {
	case hour >= 5 && hour < 12:
		return "Buenos días"
	case hour >= 12 && hour < 19:
		return "Buenas tardes"
	default:
		return "Buenas noches"
	}
}

// Farewell returns the hour-appropriate goodbye.
func Farewell(now time.Time) string {
	switch hour := now.In(normalize.Lima()).Hour(); {
	case hour >= 5 && hour < 12:
		return "Que tenga un buen día"
	case hour >= 12 && hour < 19:
		return "Que tenga una buena tarde"
	default:
		return "Que tenga una buena noche"
	}
}
