// Package project reads and validates Kitforge.toml, the declaration of a
// kit-based project: its vendors, its directly required kits, and the build
// SDK it wants.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/kitforge/kitforge/internal/style"
)

const (
	// ConfigFile is the well-known project file name.
	ConfigFile = "Kitforge.toml"

	// CurrentSchemaVersion is the only schema this build understands.
	CurrentSchemaVersion = 1

	buildDirName        = "build"
	externalKitsDirName = "external-kits"

	// ExternalMetadataFile is consumed by the downstream build step.
	ExternalMetadataFile = "external-kit-metadata.json"
)

// Vendor is a named registry source under which kit and SDK images are
// published.
type Vendor struct {
	Registry string `toml:"registry"`
}

// Image is an unresolved reference to a kit or SDK: a name and exact version
// under a declared vendor.
type Image struct {
	Name    Identifier `toml:"name" json:"name"`
	Version Version    `toml:"version" json:"version"`
	Vendor  Identifier `toml:"vendor" json:"vendor"`
}

func (i Image) String() string {
	return fmt.Sprintf("%s-%s@%s", i.Name, i.Version.String(), i.Vendor)
}

// Project is a parsed Kitforge.toml plus the directory it was loaded from.
type Project struct {
	SchemaVersion int               `toml:"schema-version"`
	Vendors       map[string]Vendor `toml:"vendor"`
	SDK           *Image            `toml:"sdk"`
	Kits          []Image           `toml:"kit"`

	dir string
}

// Load reads and validates the project file at path.
func Load(path string) (*Project, error) {
	var project Project
	metadata, err := toml.DecodeFile(path, &project)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", style.Symbol(path))
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown configuration elements %s in %s", parseUndecodedKeys(undecoded), style.Symbol(path))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	project.dir = filepath.Dir(absPath)

	if err := project.validate(); err != nil {
		return nil, errors.Wrapf(err, "validating %s", style.Symbol(path))
	}
	return &project, nil
}

// LoadOrFind loads the project file at path, or, when path is empty, walks up
// from the working directory until it finds one.
func LoadOrFind(path string) (*Project, error) {
	if path != "" {
		return Load(path)
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	start := dir
	for {
		candidate := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, errors.Errorf("unable to find %s in %s or any parent directory", ConfigFile, style.Symbol(start))
		}
		dir = parent
	}
}

func (p *Project) validate() error {
	if p.SchemaVersion != CurrentSchemaVersion {
		return errors.Errorf("unsupported schema version %d, this version of kitforge supports schema version %d", p.SchemaVersion, CurrentSchemaVersion)
	}
	for name, vendor := range p.Vendors {
		if _, err := NewIdentifier(name); err != nil {
			return errors.Wrap(err, "vendor name")
		}
		if vendor.Registry == "" {
			return errors.Errorf("vendor %s has no registry", style.Symbol(name))
		}
	}
	return nil
}

// Dir is the directory containing the project file.
func (p *Project) Dir() string {
	return p.dir
}

// LockFilePath is where the resolved dependency graph is persisted.
func (p *Project) LockFilePath() string {
	return filepath.Join(p.dir, "Kitforge.lock")
}

// ExternalKitsDir is where fetched kit contents are extracted.
func (p *Project) ExternalKitsDir() string {
	return filepath.Join(p.dir, buildDirName, externalKitsDirName)
}

// ExternalMetadataPath is the canonical metadata file the downstream build
// step reads.
func (p *Project) ExternalMetadataPath() string {
	return filepath.Join(p.ExternalKitsDir(), ExternalMetadataFile)
}

// Vendor looks up a declared vendor by name.
func (p *Project) Vendor(name string) (Vendor, bool) {
	vendor, ok := p.Vendors[name]
	return vendor, ok
}

func parseUndecodedKeys(undecodedKeys []toml.Key) string {
	unusedKeys := map[string]interface{}{}
	for _, key := range undecodedKeys {
		keyName := key.String()

		parent := strings.Split(keyName, ".")[0]

		if _, ok := unusedKeys[parent]; !ok {
			unusedKeys[keyName] = nil
		}
	}

	var errorKeys []string
	for errorKey := range unusedKeys {
		errorKeys = append(errorKeys, style.Symbol(errorKey))
	}
	return strings.Join(errorKeys, ", ")
}
