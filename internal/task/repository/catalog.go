package repository

import (
	_ "embed"
	"fmt"

	"plantpal-backend/internal/task/domain"

	"gopkg.in/yaml.v3"
)

//go:embed suggestions.yaml
var builtinSuggestions []byte

type catalogFile struct {
	Suggestions []domain.Suggestion `yaml:"suggestions"`
}

// ParseCatalog reads a YAML suggestion catalog
func ParseCatalog(data []byte) ([]domain.Suggestion, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Suggestions))
	for i, s := range file.Suggestions {
		if s.ID == "" || s.Title == "" {
			return nil, fmt.Errorf("suggestion %d: id and title are required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("suggestion %q is listed twice", s.ID)
		}
		seen[s.ID] = struct{}{}
		if _, ok := domain.ParseCategory(string(s.Category)); !ok {
			return nil, fmt.Errorf("suggestion %q: unknown category %q", s.ID, s.Category)
		}
		file.Suggestions[i].Category = domain.NormalizeCategory(string(s.Category))
		if s.Points <= 0 {
			file.Suggestions[i].Points = domain.DefaultPoints
		}
	}
	return file.Suggestions, nil
}

// BuiltinSuggestions returns the catalog compiled into the binary
func BuiltinSuggestions() []domain.Suggestion {
	suggestions, err := ParseCatalog(builtinSuggestions)
	if err != nil {
		panic(err)
	}
	return suggestions
}
