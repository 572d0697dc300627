package timetable

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema describes the shape of the persisted timetable JSON
// document (spec.md §6). It catches structural mistakes — wrong types,
// missing keys, malformed day/hour names — before semantic validation
// ever runs.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["temperatures", "differential", "mode", "hvac_mode", "inertia", "timetable"],
  "additionalProperties": false,
  "properties": {
    "temperatures": {
      "type": "object",
      "required": ["tmax", "tmin", "t0"],
      "properties": {
        "tmax": {"type": "number"},
        "tmin": {"type": "number"},
        "t0": {"type": "number"}
      }
    },
    "differential": {"type": "number"},
    "grace_time": {"type": ["number", "null"]},
    "mode": {"type": "string", "enum": ["auto", "on", "off", "tmax", "tmin", "t0"]},
    "hvac_mode": {"type": "string", "enum": ["heating", "cooling"]},
    "inertia": {"type": "integer", "enum": [1, 2, 3]},
    "timetable": {
      "type": "object",
      "patternProperties": {
        "^(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$": {
          "type": "object",
          "patternProperties": {
            "^h([01][0-9]|2[0-3])$": {
              "type": "array",
              "minItems": 4,
              "maxItems": 4,
              "items": {"type": ["string", "number"]}
            }
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// validateSchema checks raw document bytes against documentSchema. A
// failure here is always InvalidSyntax: the document is structurally
// wrong, independent of whether its temperature names resolve or its
// week is complete.
func validateSchema(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
	}
	return nil
}
