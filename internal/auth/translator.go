package auth

import (
	"errors"

	"github.com/nfrund/storefront/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// translations is the static table of provider messages. English entries
// are the provider's own wording.
var translations = map[string]string{
	MsgInvalidCredentials: "Credenciales incorrectas",
	MsgEmailNotConfirmed:  "Email no confirmado",
	MsgUserRegistered:     "El usuario ya está registrado",
	MsgWeakPassword:       "La contraseña debe tener al menos 6 caracteres",
	MsgInvalidEmail:       "Email inválido",
	MsgUserNotFound:       "Usuario no encontrado",
	MsgSignupsDisabled:    "Los registros están deshabilitados",
	MsgEmailTaken:         "Este correo ya está registrado",
	MsgUnknown:            "Error desconocido",
}

// sentinelMessages maps domain errors to the provider message they stand for.
var sentinelMessages = []struct {
	err error
	msg string
}{
	{domain.ErrInvalidCredentials, MsgInvalidCredentials},
	{domain.ErrUserAlreadyExists, MsgUserRegistered},
	{domain.ErrEmailTaken, MsgEmailTaken},
	{domain.ErrNotFound, MsgUserNotFound},
}

// Translator turns provider errors into text for the configured language.
type Translator struct {
	printer *message.Printer
}

// NewTranslator builds a translator for lang, a BCP 47 tag. Unknown or
// malformed tags fall back to Spanish.
func NewTranslator(lang string) *Translator {
	builder := catalog.NewBuilder(catalog.Fallback(language.Spanish))
	for key, text := range translations {
		_ = builder.SetString(language.Spanish, key, text)
		_ = builder.SetString(language.English, key, key)
	}

	supported := []language.Tag{language.Spanish, language.English}
	tag := language.Spanish
	if parsed, err := language.Parse(lang); err == nil {
		_, idx, _ := language.NewMatcher(supported).Match(parsed)
		tag = supported[idx]
	}

	return &Translator{printer: message.NewPrinter(tag, message.Catalog(builder))}
}

// Translate looks up a provider message. Messages outside the table are
// returned unchanged and an empty message becomes the unknown-error text.
func (t *Translator) Translate(msg string) string {
	if msg == "" {
		msg = MsgUnknown
	}
	if _, ok := translations[msg]; !ok {
		return msg
	}
	return t.printer.Sprintf(msg)
}

// Error returns the user-facing text for err.
func (t *Translator) Error(err error) string {
	if err == nil {
		return ""
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		return t.Translate(perr.Message)
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return t.Translate(s.msg)
		}
	}
	return t.Translate(err.Error())
}
