package loam

// DefinitionMetadata is the frontmatter of an operator definition document.
// Type fields stay loosely typed here: the loader decodes them with the
// schema hook once the document is read, accepting both the textual form
// ("{text: string}") and structured YAML.
type DefinitionMetadata struct {
	Name        string `json:"name" mapstructure:"name"`
	Kind        string `json:"kind" mapstructure:"kind"`
	Category    string `json:"category" mapstructure:"category"`
	Description string `json:"description" mapstructure:"description"`

	In         any            `json:"in" mapstructure:"in"`
	Out        any            `json:"out" mapstructure:"out"`
	Delegates  []any          `json:"delegates" mapstructure:"delegates"`
	Generics   map[string]any `json:"generics" mapstructure:"generics"`
	Properties map[string]any `json:"properties" mapstructure:"properties"`
}

// KindDefinition marks a document as an operator definition. Documents of
// another kind (notes, READMEs) are skipped; an empty kind counts as a
// definition.
const KindDefinition = "definition"
