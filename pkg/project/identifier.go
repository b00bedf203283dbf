package project

import (
	"regexp"

	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Identifier is a kit, SDK, or vendor name. Identifiers are lowercase
// alphanumeric with interior hyphens, which keeps them safe to embed in image
// references and filesystem paths.
type Identifier string

func NewIdentifier(value string) (Identifier, error) {
	if !identifierPattern.MatchString(value) {
		return "", errors.Errorf(
			"invalid identifier %s: identifiers must be lowercase alphanumeric segments separated by hyphens",
			style.Symbol(value),
		)
	}
	return Identifier(value), nil
}

func (i Identifier) String() string {
	return string(i)
}

func (i Identifier) MarshalText() ([]byte, error) {
	return []byte(i), nil
}

func (i *Identifier) UnmarshalText(text []byte) error {
	parsed, err := NewIdentifier(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
