// Package lock resolves a project's transitive kit dependencies against
// their registries, pins every dependency to a manifest digest, persists the
// result as Kitforge.lock, and later materializes the locked kits into a
// content-addressed local cache.
package lock

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
	"github.com/kitforge/kitforge/pkg/logging"
	"github.com/kitforge/kitforge/pkg/project"
)

// LockFile is the well-known lock file name, relative to the project dir.
const LockFile = "Kitforge.lock"

// Lock is the persisted result of resolving a project: exactly one SDK and
// the full deduplicated transitive kit closure.
type Lock struct {
	SchemaVersion int           `toml:"schema-version"`
	SDK           LockedImage   `toml:"sdk"`
	Kit           []LockedImage `toml:"kit"`
}

// Create resolves the project's declared dependencies and writes the result
// to the project's lock file. Nothing is written when resolution fails.
func Create(ctx context.Context, client RegistryClient, proj *project.Project, logger logging.Logger) (Lock, error) {
	logger.Info("Resolving project references to create lock file")
	resolved, err := newResolver(client, logger).Resolve(ctx, proj)
	if err != nil {
		return Lock{}, err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(resolved); err != nil {
		return Lock{}, errors.Wrap(err, "serializing lock file")
	}

	path := proj.LockFilePath()
	logger.Debugf("Writing new lock file to %s", style.Symbol(path))
	if err := writeAtomically(path, buf.Bytes()); err != nil {
		return Lock{}, errors.Wrap(err, "writing lock file")
	}
	return resolved, nil
}

// Load reads the project's lock file and verifies that it still matches a
// fresh resolution: the lock file is a reproducible claim about current
// remote state, not a cache of trust.
func Load(ctx context.Context, client RegistryClient, proj *project.Project, logger logging.Logger) (Lock, error) {
	path := proj.LockFilePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Lock{}, errors.Errorf("%s does not exist, please run %s first", LockFile, style.Symbol("kitforge update"))
	}

	logger.Debugf("Loading existing lock file %s", style.Symbol(path))
	var stored Lock
	if _, err := toml.DecodeFile(path, &stored); err != nil {
		return Lock{}, errors.Wrap(err, "deserializing lock file")
	}

	logger.Info("Resolving project references to check against lock file")
	resolved, err := newResolver(client, logger).Resolve(ctx, proj)
	if err != nil {
		return Lock{}, err
	}

	if !stored.Equals(resolved) {
		return Lock{}, errors.Errorf(
			"changes have occurred to %s or the remote kit images that require an update to %s",
			project.ConfigFile, LockFile,
		)
	}
	return stored, nil
}

// Equals compares two locks by the resolved identity of their images: schema
// version, SDK, and the kit list in order, each by source and digest.
func (l Lock) Equals(other Lock) bool {
	if l.SchemaVersion != other.SchemaVersion {
		return false
	}
	if !l.SDK.Equals(other.SDK) {
		return false
	}
	if len(l.Kit) != len(other.Kit) {
		return false
	}
	for i := range l.Kit {
		if !l.Kit[i].Equals(other.Kit[i]) {
			return false
		}
	}
	return true
}

// writeAtomically stages the contents next to path and renames into place so
// a crash never leaves a partial lock file.
func writeAtomically(path string, contents []byte) error {
	staged, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(staged.Name())

	if _, err := staged.Write(contents); err != nil {
		staged.Close()
		return err
	}
	if err := staged.Close(); err != nil {
		return err
	}
	return os.Rename(staged.Name(), path)
}
