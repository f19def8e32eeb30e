package suspects

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schema/locale.schema.json
var localeSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func localeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		schema, schemaErr = compiler.Compile(localeSchemaJSON)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile locale schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// ValidateLocaleJSON checks a {code}.json payload against the locale schema.
func ValidateLocaleJSON(data []byte) error {
	s, err := localeSchema()
	if err != nil {
		return err
	}
	result := s.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
