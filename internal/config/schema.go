package config

import (
	"github.com/invopop/jsonschema"
)

// SpawnSchema describes the spawn file format as JSON Schema.
func SpawnSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(new(spawnFile))
	schema.Title = "Cat Planet spawn file"
	schema.Description = "Validates the placement specs read from SPAWN_FILE"
	return schema
}
