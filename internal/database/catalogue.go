package database

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

type CataloguePermission struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Group       string `yaml:"group"`
	Description string `yaml:"description"`
}

type CatalogueRole struct {
	Code        string   `yaml:"code"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// Catalogue is the built-in set of permissions and roles seeded on sync.
type Catalogue struct {
	Permissions []CataloguePermission `yaml:"permissions"`
	Roles       []CatalogueRole       `yaml:"roles"`
}

// DefaultCatalogue parses the embedded catalogue.
func DefaultCatalogue() (*Catalogue, error) {
	return ParseCatalogue(defaultCatalogue)
}

// LoadCatalogueFile reads a catalogue from disk, falling back to the
// embedded one when path is empty.
func LoadCatalogueFile(file string) (*Catalogue, error) {
	if file == "" {
		return DefaultCatalogue()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Permissions))
	for _, p := range c.Permissions {
		if strings.TrimSpace(p.Code) == "" {
			return nil, fmt.Errorf("parse catalogue: permission without code")
		}
		if _, dup := seen[p.Code]; dup {
			return nil, fmt.Errorf("parse catalogue: duplicate permission %q", p.Code)
		}
		seen[p.Code] = struct{}{}
	}
	return &c, nil
}

// RolePermissions expands the patterns of role against the catalogue codes.
// "*" matches everything and "recipe:*" every recipe permission.
func (c *Catalogue) RolePermissions(role CatalogueRole) []string {
	var out []string
	for _, p := range c.Permissions {
		for _, pattern := range role.Permissions {
			if pattern == "*" || pattern == p.Code {
				out = append(out, p.Code)
				break
			}
			if ok, _ := path.Match(pattern, p.Code); ok {
				out = append(out, p.Code)
				break
			}
		}
	}
	return out
}
