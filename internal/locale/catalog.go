package locale

import (
	"golang.org/x/text/language"
)

// Message keys.
const (
	KeyInvalidLanguageCode       = "invalid_language_code"
	KeyVerificationAlreadyExists = "verification_already_exists"
	KeySMSSendFailed             = "sms_send_failed"
	KeySMSSendSuccess            = "sms_send_success"
	KeySMSVerificationSuccess    = "sms_verification_success"
	KeySMSVerificationFailed     = "sms_verification_failed"
	KeyInvalidPhoneNumber        = "invalid_phone_number"
	KeyCodeRequired              = "code_required"
	KeyInvalidRequestBody        = "invalid_request_body"
	KeyRateLimitExceeded         = "rate_limit_exceeded"
)

// DefaultLanguage is used when no identifier is available, e.g. to report a bad one.
const DefaultLanguage = "en"

var messages = map[string]map[string]string{
	"en": {
		KeyInvalidLanguageCode:       "Invalid or missing language code.",
		KeyVerificationAlreadyExists: "A verification code was already requested for this number. Please wait before requesting a new one.",
		KeySMSSendFailed:             "The verification code could not be sent.",
		KeySMSSendSuccess:            "Verification code sent.",
		KeySMSVerificationSuccess:    "Phone number verified.",
		KeySMSVerificationFailed:     "The verification code is invalid or has expired.",
		KeyInvalidPhoneNumber:        "Invalid phone number.",
		KeyCodeRequired:              "A verification code is required.",
		KeyInvalidRequestBody:        "Invalid request body.",
		KeyRateLimitExceeded:         "Too many requests. Please try again later.",
	},
	"de": {
		KeyInvalidLanguageCode:       "Ungültiger oder fehlender Sprachcode.",
		KeyVerificationAlreadyExists: "Für diese Nummer wurde bereits ein Bestätigungscode angefordert. Bitte warte, bevor du einen neuen anforderst.",
		KeySMSSendFailed:             "Der Bestätigungscode konnte nicht gesendet werden.",
		KeySMSSendSuccess:            "Bestätigungscode gesendet.",
		KeySMSVerificationSuccess:    "Telefonnummer bestätigt.",
		KeySMSVerificationFailed:     "Der Bestätigungscode ist ungültig oder abgelaufen.",
		KeyInvalidPhoneNumber:        "Ungültige Telefonnummer.",
		KeyCodeRequired:              "Ein Bestätigungscode ist erforderlich.",
		KeyInvalidRequestBody:        "Ungültiger Anfrageinhalt.",
		KeyRateLimitExceeded:         "Zu viele Anfragen. Bitte versuche es später erneut.",
	},
	"es": {
		KeyInvalidLanguageCode:       "Código de idioma no válido o ausente.",
		KeyVerificationAlreadyExists: "Ya se solicitó un código de verificación para este número. Espera antes de solicitar uno nuevo.",
		KeySMSSendFailed:             "No se pudo enviar el código de verificación.",
		KeySMSSendSuccess:            "Código de verificación enviado.",
		KeySMSVerificationSuccess:    "Número de teléfono verificado.",
		KeySMSVerificationFailed:     "El código de verificación no es válido o ha caducado.",
		KeyInvalidPhoneNumber:        "Número de teléfono no válido.",
		KeyCodeRequired:              "Se requiere un código de verificación.",
		KeyInvalidRequestBody:        "Cuerpo de la solicitud no válido.",
		KeyRateLimitExceeded:         "Demasiadas solicitudes. Inténtalo de nuevo más tarde.",
	},
	"fr": {
		KeyInvalidLanguageCode:       "Code de langue invalide ou manquant.",
		KeyVerificationAlreadyExists: "Un code de vérification a déjà été demandé pour ce numéro. Veuillez patienter avant d'en demander un nouveau.",
		KeySMSSendFailed:             "Le code de vérification n'a pas pu être envoyé.",
		KeySMSSendSuccess:            "Code de vérification envoyé.",
		KeySMSVerificationSuccess:    "Numéro de téléphone vérifié.",
		KeySMSVerificationFailed:     "Le code de vérification est invalide ou a expiré.",
		KeyInvalidPhoneNumber:        "Numéro de téléphone invalide.",
		KeyCodeRequired:              "Un code de vérification est requis.",
		KeyInvalidRequestBody:        "Corps de requête invalide.",
		KeyRateLimitExceeded:         "Trop de requêtes. Veuillez réessayer plus tard.",
	},
}

// Catalog selects message text for a resolved language identifier.
// It holds no per-request state; the language is always passed in.
type Catalog struct {
	supported []language.Tag
	matcher   language.Matcher
}

// NewCatalog builds a catalog over the bundled languages, English first.
func NewCatalog() *Catalog {
	supported := []language.Tag{language.English, language.German, language.Spanish, language.French}
	return &Catalog{
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}
}

// Match returns the supported language closest to tag and whether the match is usable.
func (c *Catalog) Match(tag language.Tag) (string, bool) {
	_, idx, confidence := c.matcher.Match(tag)
	return c.supported[idx].String(), confidence != language.No
}

// Message returns the text for key in lang, falling back to English and then to the key itself.
func (c *Catalog) Message(lang, key string) string {
	base := DefaultLanguage
	if tag, err := language.Parse(lang); err == nil {
		base, _ = c.Match(tag)
	}
	if msg, ok := messages[base][key]; ok {
		return msg
	}
	if msg, ok := messages[DefaultLanguage][key]; ok {
		return msg
	}
	return key
}
