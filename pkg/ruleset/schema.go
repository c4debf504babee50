// pkg/ruleset/schema.go
package ruleset

// Tag identifies one category of the closed vocabulary used to pick visual prompts.
type Tag string

// Generic is the fallback tag. It never carries keywords and is the baseline
// prompt group for every verification.
const Generic Tag = "generic"

const (
	Fitness  Tag = "fitness"
	Study    Tag = "study"
	Cleaning Tag = "cleaning"
	Food     Tag = "food"
	Outdoor  Tag = "outdoor"
)

// Ruleset is the versioned keyword and prompt data. Category order is
// significant: it is the matching priority.
type Ruleset struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Categories  []Category `json:"categories"`
	Generic     []string   `json:"generic"`
}

// Category binds a tag to its title keywords and its visual prompts.
// An empty Prompts list falls back to the generic prompts.
type Category struct {
	Tag      Tag      `json:"tag"`
	Keywords []string `json:"keywords"`
	Prompts  []string `json:"prompts,omitempty"`
}

// JSONSchema describes the on-disk ruleset document. LoadRuleset enforces the
// semantic checks the schema cannot express (unique tags, no generic keywords).
const JSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "categories", "generic"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "categories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["tag", "keywords"],
        "properties": {
          "tag": {"type": "string", "minLength": 1},
          "keywords": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
          "prompts": {"type": "array", "items": {"type": "string", "minLength": 1}}
        }
      }
    },
    "generic": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
  }
}`
