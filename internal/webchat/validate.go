package webchat

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateContact trims both fields and reports per-field problems.
// It returns nil when the contact info may be submitted.
func ValidateContact(ci ContactInfo) (ContactInfo, FieldErrors) {
	ci.Name = strings.TrimSpace(ci.Name)
	ci.Email = strings.TrimSpace(ci.Email)

	errs := FieldErrors{}
	if ci.Name == "" {
		errs["name"] = "El nombre es obligatorio"
	}
	switch {
	case ci.Email == "":
		errs["email"] = "El email es obligatorio"
	case !emailPattern.MatchString(ci.Email):
		errs["email"] = "Introduce un email válido"
	}

	if len(errs) == 0 {
		return ci, nil
	}
	return ci, errs
}

func greeting(name string) string {
	return "Hola, soy " + name
}
