package config

import (
	"github.com/invopop/jsonschema"
)

// PolicySchema describes the policy file: a map of category name to policy.
func PolicySchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		ExpandedStruct:             true,
	}

	entry := reflector.Reflect(&CategoryPolicy{})
	entry.Version = ""
	entry.ID = ""

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Postora upload policies",
		Description: "Per-category upload policy overrides. An entry replaces the whole category.",
		Type:        "object",
		PropertyNames: &jsonschema.Schema{
			Enum: []any{CategoryImage, CategoryVideo, CategoryAudio, CategoryDocument},
		},
		AdditionalProperties: entry,
	}
}
