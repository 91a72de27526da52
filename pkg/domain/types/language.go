package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// Language is a caption language code such as "en", "hi" or "pt-BR"
type Language string

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// Validate checks if the Language is valid
func (l Language) Validate() error {
	if l == "" {
		return goerr.New("language cannot be empty")
	}
	if !languagePattern.MatchString(string(l)) {
		return goerr.New("language must be a BCP 47 style code", goerr.V("language", l))
	}
	return nil
}

// String returns the string representation of Language
func (l Language) String() string {
	return string(l)
}

// Languages is an ordered language preference list, most preferred first
type Languages []Language

// Validate checks that the list is non-empty and every entry is valid
func (x Languages) Validate() error {
	if len(x) == 0 {
		return goerr.New("at least one language is required")
	}
	seen := make(map[Language]bool, len(x))
	for i, l := range x {
		if err := l.Validate(); err != nil {
			return goerr.Wrap(err, "invalid language", goerr.V("index", i))
		}
		if seen[l] {
			return goerr.New("duplicate language", goerr.V("language", l))
		}
		seen[l] = true
	}
	return nil
}

// Strings returns the codes as plain strings
func (x Languages) Strings() []string {
	out := make([]string, len(x))
	for i, l := range x {
		out[i] = string(l)
	}
	return out
}

// NewLanguages converts plain codes into Languages without validation
func NewLanguages(codes ...string) Languages {
	out := make(Languages, len(codes))
	for i, c := range codes {
		out[i] = Language(c)
	}
	return out
}
