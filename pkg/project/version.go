package project

import (
	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
)

// Version is an exact semantic version. Kit references never carry ranges;
// the wrapper exists so versions round-trip through TOML and JSON as text.
type Version struct {
	semver.Version
}

func NewVersion(value string) (Version, error) {
	parsed, err := semver.NewVersion(value)
	if err != nil {
		return Version{}, errors.Wrapf(err, "parsing version %s", style.Symbol(value))
	}
	return Version{Version: *parsed}, nil
}

// MustVersion parses value and panics on failure. For tests and constants.
func MustVersion(value string) Version {
	version, err := NewVersion(value)
	if err != nil {
		panic(err)
	}
	return version
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := semver.NewVersion(string(text))
	if err != nil {
		return errors.Wrapf(err, "parsing version %s", style.Symbol(string(text)))
	}
	v.Version = *parsed
	return nil
}

// Matches reports semantic equality, ignoring original formatting such as a
// leading "v".
func (v Version) Matches(other Version) bool {
	return v.Version.Equal(&other.Version)
}
