package suspects

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var defaultLanguagesYAML []byte

// Languages maps lower-cased locale codes to display names.
type Languages map[string]Language

// Lookup finds the names for a locale code, case-insensitively.
func (l Languages) Lookup(code string) (Language, bool) {
	lang, ok := l[strings.ToLower(code)]
	return lang, ok
}

// DefaultLanguages returns the built-in language table.
func DefaultLanguages() (Languages, error) {
	return parseLanguages(defaultLanguagesYAML)
}

// LoadLanguages reads a language table from a YAML (or JSON) file.
func LoadLanguages(path string) (Languages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read languages: %w", err)
	}
	return parseLanguages(data)
}

func parseLanguages(data []byte) (Languages, error) {
	var raw map[string]Language
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	out := make(Languages, len(raw))
	for code, lang := range raw {
		out[strings.ToLower(code)] = lang
	}
	return out, nil
}
