package locale

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// HeaderLanguageID carries the caller's locale on every RPC.
const HeaderLanguageID = "x-language-id"

// ErrInvalidLanguageCode is returned for missing, malformed or unsupported language identifiers.
var ErrInvalidLanguageCode = errors.New("invalid language code")

// Resolver turns request metadata into a validated language identifier.
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a Resolver backed by catalog's supported languages.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// FromRequest reads the x-language-id header.
func (r *Resolver) FromRequest(req *http.Request) (string, error) {
	return r.Validate(req.Header.Get(HeaderLanguageID))
}

// Validate parses id as a BCP 47 tag and maps it onto a supported language.
func (r *Resolver) Validate(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidLanguageCode
	}
	tag, err := language.Parse(id)
	if err != nil {
		return "", ErrInvalidLanguageCode
	}
	lang, ok := r.catalog.Match(tag)
	if !ok {
		return "", ErrInvalidLanguageCode
	}
	return lang, nil
}
