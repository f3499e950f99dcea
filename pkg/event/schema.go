package event

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Size limits enforced on raw events
const (
	MaxNameLength = 128
	MaxURLLength  = 2048
)

// rawEventSchema builds the JSON Schema a RawEvent must satisfy
func rawEventSchema() (*gojsonschema.Schema, error) {
	types := make([]interface{}, 0, len(knownTypes))
	for _, t := range Types() {
		types = append(types, string(t))
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"eventName"},
		"properties": map[string]interface{}{
			"eventName": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
				"maxLength": MaxNameLength,
			},
			"eventType": map[string]interface{}{
				"type": "string",
				"enum": types,
			},
			"page": map[string]interface{}{
				"type":      "string",
				"maxLength": MaxURLLength,
			},
			"url": map[string]interface{}{
				"type":      "string",
				"maxLength": MaxURLLength,
			},
			"referrer": map[string]interface{}{
				"type":      "string",
				"maxLength": MaxURLLength,
			},
			"metadata": map[string]interface{}{
				"type": "object",
			},
		},
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}

	return schema, nil
}

// validateShape checks raw against the schema. The raw event is round-tripped
// through JSON first so that non-serializable metadata is refused here rather
// than at send time.
func validateShape(schema *gojsonschema.Schema, raw RawEvent) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return invalid("metadata", "not JSON-serializable")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return invalid("event", err.Error())
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return invalid("event", err.Error())
	}

	if !result.Valid() {
		first := result.Errors()[0]
		field := first.Field()
		if field == "(root)" {
			if missing, ok := first.Details()["property"].(string); ok {
				field = missing
			}
		}
		reasons := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			reasons = append(reasons, e.Description())
		}
		return invalid(field, strings.Join(reasons, "; "))
	}

	return nil
}
