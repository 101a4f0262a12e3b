// Package normalize validates and normalizes caller-provided values (phone
// numbers, appointment dates) before any webhook call is made. Error messages
// are the user-facing Spanish utterances spoken back when validation fails.
package normalize

import (
	"errors"
	"regexp"
	"strings"
)

var (
	phoneCleanRe = regexp.MustCompile(`[\s\-\(\)]+`)
	peruPhoneRe  = regexp.MustCompile(`^\+51\d{9}$`)
)

// Phone normalizes a Peruvian mobile number to +51XXXXXXXXX. Numbers without
// a country prefix are assumed to be Peruvian.
func Phone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("Por favor, proporciona un número de celular válido.")
	}
	phone := phoneCleanRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if !strings.HasPrefix(phone, "+") {
		phone = "+51" + phone
	}
	if !peruPhoneRe.MatchString(phone) {
		return "", errors.New("El número de celular no es válido. Debe tener 9 dígitos, por ejemplo, +51987654321.")
	}
	return phone, nil
}

// PhoneFromIdentity extracts a phone number from a SIP participant identity
// such as "sip_987654321" or "sip:+51987654321@host". Returns the identity
// unchanged when no SIP shape is recognized.
func PhoneFromIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(identity, "sip_"); ok {
		if strings.HasPrefix(rest, "+") {
			return rest
		}
		return "+51" + rest
	}
	if _, rest, ok := strings.Cut(identity, "sip:"); ok {
		num, _, _ := strings.Cut(rest, "@")
		if strings.HasPrefix(num, "+") {
			return num
		}
		return "+51" + num
	}
	return identity
}
