// Package project manages templates, issues, pull requests, and
// collaboration sessions on top of the version-control registry.
package project

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is a static content bundle used to seed a new repository's
// initial commit. Templates are immutable.
type Template struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Language     string            `yaml:"language"`
	Framework    string            `yaml:"framework"`
	Files        map[string]string `yaml:"files"`
	Dependencies []string          `yaml:"dependencies"`
}

// LoadTemplates parses the embedded template catalog.
func LoadTemplates() (map[string]*Template, error) {
	templates := make(map[string]*Template)
	if err := yaml.Unmarshal(templatesYAML, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	return templates, nil
}
