// Package schema provides the port type model.
//
// A Type is a closed sum: Unspecified, Primitive (string, number, boolean or
// the catch-all primitive), Trigger, Generic, Stream and Map. Types are built
// with factory functions or parsed from their textual form:
//
//	t := schema.Map(
//	    schema.E("name", schema.String()),
//	    schema.E("tags", schema.Stream(schema.String())),
//	)
//
//	same, err := schema.ParseType("{name: string, tags: [string]}")
//
// Generics are written "<T>". Map keys that are not plain identifiers are
// quoted, which is how property templates such as "{variables}" appear:
//
//	schema.ParseType(`{"{variables}": number}`)
//
// Compatible answers whether a source type may flow into a destination and
// Union merges observations of the same generic. Property declarations use
// Schema, a map of names to types, validated against assigned values by
// Validate.
//
// Expr wraps a Type for JSON and YAML documents, and DecodeHook teaches
// mapstructure to decode the same forms from loosely typed maps.
package schema
