package briefing

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/pkg/anthropic"
)

// PriorityToolName is the tool the model is forced to call with its ranking.
const PriorityToolName = "record_deal_priorities"

const priorityToolDescription = "Record the prioritized deal list. Call exactly once with one entry per deal ID in the input."

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	itemsKey                = "items"
	requiredKey             = "required"
)

var prioritySchema = sync.OnceValues(func() (map[string]any, error) {
	return generateSchema[model.PriorityResult]()
})

// PrioritySchema returns the JSON schema of PriorityResult as a map.
func PrioritySchema() (map[string]any, error) {
	return prioritySchema()
}

// priorityTool builds the forced tool whose input is a PriorityResult.
func priorityTool() (anthropic.Tool, error) {
	schema, err := PrioritySchema()
	if err != nil {
		return anthropic.Tool{}, err
	}
	props, ok := schema[propertiesKey].(map[string]any)
	if !ok {
		return anthropic.Tool{}, eris.New("briefing: priority schema has no properties")
	}
	allowExtra, set := schema[additionalPropertiesKey].(bool)
	return anthropic.Tool{
		Name:        PriorityToolName,
		Description: priorityToolDescription,
		InputSchema: props,
		Required:    stringList(schema[requiredKey]),
		Closed:      set && !allowExtra,
	}, nil
}

func generateSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	m, err := schemaToMap(reflector.Reflect(v))
	if err != nil {
		return nil, eris.Wrap(err, "briefing: reflect schema")
	}
	closeObjects(m)
	return m, nil
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// closeObjects sets additionalProperties=false on every object schema.
func closeObjects(schema map[string]any) {
	if t, ok := schema[typeKey].(string); ok && t == "object" {
		schema[additionalPropertiesKey] = false
	}
	if props, ok := schema[propertiesKey].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				closeObjects(pm)
			}
		}
	}
	if items, ok := schema[itemsKey].(map[string]any); ok {
		closeObjects(items)
	}
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
