package lock

import (
	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
)

// Architecture names the platform slice of a multi-platform kit image, using
// OCI platform vocabulary.
type Architecture string

const (
	ArchitectureAmd64 Architecture = "amd64"
	ArchitectureArm64 Architecture = "arm64"
)

// ParseArchitecture accepts both OCI and uname-style architecture names.
func ParseArchitecture(value string) (Architecture, error) {
	switch value {
	case "amd64", "x86_64":
		return ArchitectureAmd64, nil
	case "arm64", "aarch64":
		return ArchitectureArm64, nil
	}
	return "", errors.Errorf("unsupported architecture %s", style.Symbol(value))
}

func (a Architecture) String() string {
	return string(a)
}
